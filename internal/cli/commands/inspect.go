package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/cfnschema/cfnschema/internal/cli/ui"
	"github.com/cfnschema/cfnschema/internal/compiler/collector"
	"github.com/cfnschema/cfnschema/internal/compiler/pipeline"
	"github.com/cfnschema/cfnschema/internal/compiler/schema"
)

var (
	inspectPropertyTypes bool
	inspectReferences    bool
	inspectIDs           bool
	inspectJSON          bool
)

// NewInspectCommand creates the inspect command
func NewInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [source] [name]",
		Short: "Show compiled resources, nested types and references",
		Long: `Compile a specification database in memory and show the result without
writing any files.

With no name, lists every resource. With a name, shows one resource or
nested type in detail, including its construct name in every language.`,
		Example: `  # List every resource
  cfnschema inspect spec.json

  # Show one resource
  cfnschema inspect spec.json AWS::S3::Bucket

  # Show one nested type
  cfnschema inspect spec.json AWS::S3::Bucket.CorsRuleProperty

  # List nested types, the reference table, or the type id index
  cfnschema inspect spec.json --property-types
  cfnschema inspect spec.json --references
  cfnschema inspect spec.json --ids`,
		Args: cobra.MaximumNArgs(2),
		RunE: runInspect,
	}

	cmd.Flags().BoolVar(&inspectPropertyTypes, "property-types", false, "List nested types")
	cmd.Flags().BoolVar(&inspectReferences, "references", false, "List the reference table built by the resource pass")
	cmd.Flags().BoolVar(&inspectIDs, "ids", false, "List type definition ids and their nested type names")
	cmd.Flags().BoolVar(&inspectJSON, "json", false, "Output in JSON format")

	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	var source, name string
	switch len(args) {
	case 1:
		source = args[0]
	case 2:
		source, name = args[0], args[1]
	}
	source = a.source([]string{source})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := a.openDatabase(ctx, source)
	if err != nil {
		return failInspect(cmd, err)
	}

	out := cmd.OutOrStdout()

	if inspectReferences {
		pass1, err := pipeline.Collect(db, a.pipelineOptions())
		if err != nil {
			return failInspect(cmd, err)
		}
		return printReferences(out, pass1.References)
	}

	doc, err := pipeline.Build(ctx, db, a.pipelineOptions())
	if err != nil {
		return failInspect(cmd, err)
	}

	switch {
	case name != "":
		return inspectEntry(cmd, doc, name)
	case inspectIDs:
		return printIDs(out, doc)
	case inspectPropertyTypes:
		return printPropertyTypes(out, doc)
	default:
		return printResources(out, doc)
	}
}

func failInspect(cmd *cobra.Command, err error) error {
	if inspectJSON {
		return reportJSON(cmd, err)
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	data, err := schema.Serialize(v, schema.FormatJSON)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printResources(w io.Writer, doc *schema.Document) error {
	if inspectJSON {
		return printJSON(w, doc.Resources)
	}

	table := ui.NewTable(w, []string{"TYPE", "ATTRIBUTES", "PROPERTIES", "CONSTRUCT"}, &ui.TableOptions{NoColor: rootNoColor})
	for pair := doc.Resources.Oldest(); pair != nil; pair = pair.Next() {
		res := pair.Value
		table.AddRow(pair.Key, strconv.Itoa(res.Attributes.Len()), strconv.Itoa(res.Properties.Len()), res.Construct.TypeScript.Name)
	}
	table.Render()
	fmt.Fprintf(w, "\n%d resources, %d property types\n", doc.Resources.Len(), doc.PropertyTypes.Len())
	return nil
}

func printPropertyTypes(w io.Writer, doc *schema.Document) error {
	if inspectJSON {
		return printJSON(w, doc.PropertyTypes)
	}

	ids := make(map[string]string, doc.TypeIndex.Len())
	for pair := doc.TypeIndex.Oldest(); pair != nil; pair = pair.Next() {
		ids[pair.Value] = pair.Key
	}

	table := ui.NewTable(w, []string{"NAME", "PROPERTIES", "ID"}, &ui.TableOptions{NoColor: rootNoColor})
	for pair := doc.PropertyTypes.Oldest(); pair != nil; pair = pair.Next() {
		table.AddRow(pair.Key, strconv.Itoa(pair.Value.Properties.Len()), ids[pair.Key])
	}
	table.Render()
	return nil
}

func printIDs(w io.Writer, doc *schema.Document) error {
	if inspectJSON {
		return printJSON(w, doc.TypeIndex)
	}

	table := ui.NewTable(w, []string{"ID", "NAME"}, &ui.TableOptions{NoColor: rootNoColor})
	for pair := doc.TypeIndex.Oldest(); pair != nil; pair = pair.Next() {
		table.AddRow(pair.Key, pair.Value)
	}
	table.Render()
	return nil
}

func printReferences(w io.Writer, refs *collector.ReferenceTable) error {
	if inspectJSON {
		entries := orderedmap.New[string, string](refs.Len())
		refs.Each(func(id, qualified string) { entries.Set(id, qualified) })
		return printJSON(w, entries)
	}

	table := ui.NewTable(w, []string{"ID", "REFERENCE", "OWNER"}, &ui.TableOptions{NoColor: rootNoColor})
	refs.Each(func(id, qualified string) {
		owner, _ := collector.SplitQualified(qualified)
		table.AddRow(id, qualified, owner)
	})
	table.Render()
	return nil
}

func inspectEntry(cmd *cobra.Command, doc *schema.Document, name string) error {
	out := cmd.OutOrStdout()

	if res, ok := doc.Resources.Get(name); ok {
		if inspectJSON {
			return printJSON(out, res)
		}
		ui.Header(out, name, rootNoColor)
		printNaming(out, res.Construct)
		if res.Attributes.Len() > 0 {
			fmt.Fprintln(out)
			table := ui.NewTable(out, []string{"ATTRIBUTE", "TYPE"}, &ui.TableOptions{NoColor: rootNoColor})
			for pair := res.Attributes.Oldest(); pair != nil; pair = pair.Next() {
				table.AddRow(pair.Key, pair.Value.ValueType.String())
			}
			table.Render()
		}
		printProperties(out, res.Properties)
		return nil
	}

	if pt, ok := doc.PropertyTypes.Get(name); ok {
		if inspectJSON {
			return printJSON(out, pt)
		}
		ui.Header(out, name, rootNoColor)
		printNaming(out, pt.Name)
		printProperties(out, pt.Properties)
		return nil
	}

	candidates := make([]string, 0, doc.Resources.Len()+doc.PropertyTypes.Len())
	for pair := doc.Resources.Oldest(); pair != nil; pair = pair.Next() {
		candidates = append(candidates, pair.Key)
	}
	for pair := doc.PropertyTypes.Oldest(); pair != nil; pair = pair.Next() {
		candidates = append(candidates, pair.Key)
	}

	err := fmt.Errorf("no resource or nested type named %q", name)
	if inspectJSON {
		return reportJSON(cmd, err)
	}
	fmt.Fprint(cmd.ErrOrStderr(), ui.NotFoundError("resource", name, ui.FindSimilar(name, candidates, 3), rootNoColor))
	return &reportedError{err: err}
}

func printNaming(w io.Writer, n schema.Naming) {
	table := ui.NewKeyValueTable(w, rootNoColor)
	for _, e := range n.Entries() {
		table.AddRow(e[0], e[1]+" "+e[2])
	}
	table.Render()
}

func printProperties(w io.Writer, props *schema.Properties) {
	if props.Len() == 0 {
		return
	}
	fmt.Fprintln(w)
	table := ui.NewTable(w, []string{"PROPERTY", "TYPE", "REQUIRED"}, &ui.TableOptions{NoColor: rootNoColor})
	for pair := props.Oldest(); pair != nil; pair = pair.Next() {
		required := ""
		if pair.Value.Required {
			required = "yes"
		}
		table.AddRow(pair.Key, pair.Value.ValueType.String(), required)
	}
	table.Render()
}
