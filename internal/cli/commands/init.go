package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cfnschema/cfnschema/internal/cli/config"
	"github.com/cfnschema/cfnschema/internal/cli/ui"
	"github.com/cfnschema/cfnschema/internal/compiler/cache"
	"github.com/cfnschema/cfnschema/internal/compiler/schema"
)

var (
	initYes    bool
	initSource string
	initPath   string
)

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a cfnschema.yml config file",
		Long: `Create a cfnschema.yml in the working directory.

Prompts for the database source, output format and directory, and result
cache backend. Use --yes to accept the defaults without prompting.`,
		Example: `  # Answer prompts
  cfnschema init

  # Write defaults for a given source
  cfnschema init --yes --source s3://specs/spec.json.gz`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}

	cmd.Flags().BoolVarP(&initYes, "yes", "y", false, "Accept defaults without prompting")
	cmd.Flags().StringVar(&initSource, "source", "", "Database source")
	cmd.Flags().StringVar(&initPath, "path", config.FileName+".yml", "Config file to create")

	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if initSource != "" {
		cfg.Source = initSource
	}

	if !initYes {
		if err := askConfig(cfg); err != nil {
			return err
		}
	}

	if err := config.Write(initPath, cfg); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ui.WriteSuccess(out, fmt.Sprintf("Created %s", filepath.Clean(initPath)), rootNoColor)
	infoColor := color.New(color.FgCyan)
	if rootNoColor {
		infoColor.DisableColor()
	}
	infoColor.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  cfnschema generate")
	fmt.Fprintln(out, "  cfnschema serve --watch")
	return nil
}

func askConfig(cfg *config.Config) error {
	questions := []*survey.Question{
		{
			Name: "source",
			Prompt: &survey.Input{
				Message: "Database source:",
				Default: cfg.Source,
				Help:    "A .json or .json.gz file, s3://bucket/key, sqlite3:///path or postgres:// URL",
			},
			Validate: survey.ComposeValidators(survey.Required, validateSource),
		},
		{
			Name: "format",
			Prompt: &survey.Select{
				Message: "Output format:",
				Options: []string{string(schema.FormatJSON), string(schema.FormatYAML)},
				Default: cfg.Output.Format,
			},
		},
		{
			Name: "dir",
			Prompt: &survey.Input{
				Message: "Output directory:",
				Default: cfg.Output.Dir,
			},
			Validate: survey.Required,
		},
		{
			Name: "cache",
			Prompt: &survey.Select{
				Message: "Result cache:",
				Options: cache.Backends,
				Default: cfg.Cache.Backend,
			},
		},
	}

	answers := struct {
		Source string
		Format string
		Dir    string
		Cache  string
	}{}

	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	cfg.Source = strings.TrimSpace(answers.Source)
	cfg.Output.Format = answers.Format
	cfg.Output.Dir = strings.TrimSpace(answers.Dir)
	cfg.Cache.Backend = answers.Cache
	return nil
}

var sourceSchemes = []string{"s3://", "sqlite3://", "postgres://", "postgresql://", "pgx://"}

// validateSource is a survey validator for database sources.
func validateSource(ans any) error {
	s, ok := ans.(string)
	if !ok {
		return errors.New("source must be a string")
	}
	s = strings.TrimSpace(s)

	if i := strings.Index(s, "://"); i > 0 {
		for _, scheme := range sourceSchemes {
			if strings.HasPrefix(strings.ToLower(s), scheme) {
				return nil
			}
		}
		return fmt.Errorf("unsupported source scheme %q (expected one of %s)", s[:i], strings.Join(sourceSchemes, ", "))
	}

	if !strings.HasSuffix(s, ".json") && !strings.HasSuffix(s, ".json.gz") {
		return errors.New("local sources must be .json or .json.gz files")
	}
	return nil
}
