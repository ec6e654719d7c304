package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cfnschema/cfnschema/internal/cli/ui"
	"github.com/cfnschema/cfnschema/internal/compiler/cache"
	cerrors "github.com/cfnschema/cfnschema/internal/compiler/errors"
	"github.com/cfnschema/cfnschema/internal/compiler/pipeline"
	"github.com/cfnschema/cfnschema/internal/compiler/schema"
	"github.com/cfnschema/cfnschema/internal/specdb"
	"github.com/cfnschema/cfnschema/internal/watch"
)

var (
	generateOutput   string
	generateFormat   string
	generateCompress bool
	generateNoCache  bool
	generateWatch    bool
	generateJSON     bool
)

// NewGenerateCommand creates the generate command
func NewGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [source]",
		Short: "Compile a specification database into schema documents",
		Long: `Compile a specification database and write resources and property-types
documents to the output directory.

The run has two passes:
  1. Resources - resolve every resource's attributes and properties and
     record which resource owns each nested type
  2. Property types - resolve every nested type under its owning resource

Source defaults to the "source" setting in cfnschema.yml.`,
		Example: `  # Compile the configured source
  cfnschema generate

  # Compile a local database to YAML
  cfnschema generate spec.json --format yaml

  # Compile from object storage into a custom directory, gzip-compressed
  cfnschema generate s3://specs/spec.json.gz -o dist/schema --compress

  # Recompile whenever the database file changes
  cfnschema generate spec.json --watch

  # Print errors and results as JSON (useful for tooling)
  cfnschema generate --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runGenerate,
	}

	cmd.Flags().StringVarP(&generateOutput, "output", "o", "", "Output directory (default: output.dir from config)")
	cmd.Flags().StringVarP(&generateFormat, "format", "f", "", "Output format: json or yaml (default: output.format from config)")
	cmd.Flags().BoolVar(&generateCompress, "compress", false, "Gzip the output files")
	cmd.Flags().BoolVar(&generateNoCache, "no-cache", false, "Skip the result cache")
	cmd.Flags().BoolVarP(&generateWatch, "watch", "w", false, "Recompile when the source file changes")
	cmd.Flags().BoolVar(&generateJSON, "json", false, "Output results and errors in JSON format")

	return cmd
}

func runGenerate(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return failGenerate(cmd, err)
	}
	defer a.close()

	g, err := newGenerator(cmd, a, args)
	if err != nil {
		return failGenerate(cmd, err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if !generateNoCache {
		results, err := cache.Open(ctx, a.cfg.CacheOptions())
		if err != nil {
			a.logger.Debug("result cache unavailable", zap.Error(err))
			if !generateJSON {
				fmt.Fprint(cmd.ErrOrStderr(), ui.Warning("result cache unavailable, compiling without it: "+err.Error(), rootNoColor))
			}
		} else if results != nil {
			g.results = results
			defer results.Close()
		}
	}

	res, err := g.run(ctx)
	if err != nil {
		return failGenerate(cmd, err)
	}
	g.report(cmd.OutOrStdout(), res)

	if !generateWatch {
		return nil
	}
	return g.watch(ctx, cmd)
}

func failGenerate(cmd *cobra.Command, err error) error {
	if generateJSON {
		return reportJSON(cmd, err)
	}
	return err
}

// generator compiles one source and writes the documents.
type generator struct {
	app      *app
	source   string
	dir      string
	format   schema.Format
	compress bool
	results  *cache.Results
}

type generateResult struct {
	Source  string        `json:"source"`
	Files   []string      `json:"files"`
	Stats   *schema.Stats `json:"stats,omitempty"`
	Cached  bool          `json:"cached"`
	Elapsed time.Duration `json:"-"`
}

func newGenerator(cmd *cobra.Command, a *app, args []string) (*generator, error) {
	cfg := a.cfg

	dir := cfg.Output.Dir
	if cmd.Flags().Changed("output") {
		dir = generateOutput
	}

	formatName := cfg.Output.Format
	if cmd.Flags().Changed("format") {
		formatName = generateFormat
	}
	format, err := schema.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}

	compress := cfg.Output.Compress
	if cmd.Flags().Changed("compress") {
		compress = generateCompress
	}

	return &generator{
		app:      a,
		source:   a.source(args),
		dir:      dir,
		format:   format,
		compress: compress,
	}, nil
}

func (g *generator) run(ctx context.Context) (*generateResult, error) {
	start := time.Now()

	db, err := g.app.openDatabase(ctx, g.source)
	if err != nil {
		return nil, err
	}

	enc, stats, err := g.encode(ctx, db)
	if err != nil {
		return nil, err
	}

	files, err := schema.WriteToDir(enc, g.dir, schema.WriteOptions{Compress: g.compress})
	if err != nil {
		return nil, err
	}

	return &generateResult{
		Source:  g.source,
		Files:   files,
		Stats:   stats,
		Cached:  stats == nil,
		Elapsed: time.Since(start),
	}, nil
}

// encode returns the encoded documents, from the cache when possible.
// Stats is nil on a cache hit.
func (g *generator) encode(ctx context.Context, db *specdb.Snapshot) (*schema.Encoded, *schema.Stats, error) {
	opts := g.app.pipelineOptions()

	var key string
	if g.results != nil {
		hasher := cache.NewHasher()
		hash, err := hasher.HashSnapshot(db)
		if err != nil {
			g.app.logger.Warn("failed to hash database", zap.Error(err))
		} else {
			key = hasher.Key(hash, cache.KeyOptions{Roots: opts.Roots, TagType: opts.TagType, Format: g.format})
			enc, ok, err := g.results.Load(ctx, key)
			switch {
			case err != nil:
				g.app.logger.Warn("cache read failed", zap.Error(err))
			case ok && enc.Format == g.format:
				g.app.logger.Debug("cache hit", zap.String("key", key))
				return enc, nil, nil
			}
		}
	}

	doc, err := pipeline.Build(ctx, db, opts)
	if err != nil {
		return nil, nil, err
	}
	enc, err := schema.Encode(doc, g.format)
	if err != nil {
		return nil, nil, err
	}

	if key != "" {
		if err := g.results.Save(ctx, key, enc); err != nil {
			g.app.logger.Warn("cache write failed", zap.Error(err))
		}
	}

	return enc, &doc.Stats, nil
}

func (g *generator) report(w io.Writer, res *generateResult) {
	if generateJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err == nil {
			fmt.Fprintln(w, string(data))
		}
		return
	}

	msg := fmt.Sprintf("Generated schema in %s", res.Elapsed.Round(time.Millisecond))
	if res.Cached {
		msg += " (cached)"
	}
	ui.WriteSuccess(w, msg, rootNoColor)

	fileColor := color.New(color.FgCyan)
	if rootNoColor {
		fileColor.DisableColor()
	}
	for _, f := range res.Files {
		if info, err := os.Stat(f); err == nil {
			fileColor.Fprintf(w, "  %s (%s)\n", f, humanize.Bytes(uint64(info.Size())))
			continue
		}
		fileColor.Fprintf(w, "  %s\n", f)
	}

	if rootVerbose && res.Stats != nil {
		fmt.Fprintln(w)
		table := ui.NewKeyValueTable(w, rootNoColor)
		table.AddRow("Resources", strconv.Itoa(res.Stats.Resources))
		table.AddRow("Attributes", strconv.Itoa(res.Stats.Attributes))
		table.AddRow("Properties", strconv.Itoa(res.Stats.Properties))
		table.AddRow("Property types", strconv.Itoa(res.Stats.PropertyTypes))
		table.AddRow("References", strconv.Itoa(res.Stats.References))
		table.AddRow("Carried forward", strconv.Itoa(res.Stats.CarriedForward))
		table.Render()
	}
}

// watchable reports whether source is a local file.
func watchable(source string) bool {
	return !strings.Contains(source, "://")
}

// sourceDigest remembers the content hash of a watched source so a rebuild
// can be skipped when an editor rewrites the file with identical bytes.
// It is not safe for concurrent use; watch callbacks never overlap.
type sourceDigest struct {
	hasher *cache.Hasher
	path   string
	last   string
}

func newSourceDigest(path string) *sourceDigest {
	d := &sourceDigest{hasher: cache.NewHasher(), path: path}
	d.changed()
	return d
}

// changed reports whether the file differs from the last call. An
// unreadable file counts as changed so the rebuild reports the error.
func (d *sourceDigest) changed() bool {
	hash, err := d.hasher.HashFile(d.path)
	if err != nil {
		d.last = ""
		return true
	}
	if hash == d.last {
		return false
	}
	d.last = hash
	return true
}

// watch recompiles on every change to the source file until interrupted.
// A failed rebuild is reported and the previous output stays in place.
func (g *generator) watch(ctx context.Context, cmd *cobra.Command) error {
	if !watchable(g.source) {
		return fmt.Errorf("--watch requires a local file source, got %s", g.source)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	digest := newSourceDigest(g.source)
	fw, err := watch.NewFileWatcher([]string{g.source}, watch.Options{Logger: g.app.logger}, func(files []string) error {
		if !digest.changed() {
			g.app.logger.Debug("source unchanged, skipping rebuild", zap.Strings("files", files))
			return nil
		}
		res, err := g.run(ctx)
		if err != nil {
			g.printRebuildError(cmd, err)
			return nil
		}
		g.report(out, res)
		return nil
	})
	if err != nil {
		return err
	}
	if err := fw.Start(); err != nil {
		return err
	}
	defer fw.Stop()

	if !generateJSON {
		color.New(color.FgYellow).Fprintf(out, "Watching %s for changes (Ctrl+C to stop)\n", strings.Join(fw.Files(), ", "))
	}

	<-ctx.Done()
	return nil
}

func (g *generator) printRebuildError(cmd *cobra.Command, err error) {
	if generateJSON {
		_ = reportJSON(cmd, err)
		return
	}
	if ce, ok := cerrors.AsCompilerError(err); ok {
		cmd.PrintErrln(cerrors.FormatError(ce))
		return
	}
	color.New(color.FgRed, color.Bold).Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
}
