package commands

import (
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	cerrors "github.com/cfnschema/cfnschema/internal/compiler/errors"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// Global flags
var (
	rootConfigFile string
	rootNoColor    bool
	rootVerbose    bool
	rootLogLevel   string
	rootQuiet      bool
)

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cfnschema",
		Short: "Compile a CloudFormation specification database into a cross-language schema",
		Long: color.CyanString(`cfnschema - CloudFormation schema compiler

cfnschema reads a specification database of services, resource types and
nested type definitions, and produces two documents:

  resources.json        every resource type with its attributes, properties
                        and construct names in five languages
  property-types.json   every nested type, keyed by owning resource

Sources may be local files, s3:// objects, or sqlite3/postgres databases.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if rootNoColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&rootConfigFile, "config", "c", "", "Config file (default: cfnschema.yml in the working directory)")
	rootCmd.PersistentFlags().BoolVar(&rootNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Show detailed output and debug logs")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&rootQuiet, "quiet", "q", false, "Disable log output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewGenerateCommand())
	rootCmd.AddCommand(NewInspectCommand())
	rootCmd.AddCommand(NewServeCommand())
	rootCmd.AddCommand(NewInitCommand())

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the cfnschema version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			titleColor := color.New(color.FgCyan, color.Bold)
			valueColor := color.New(color.FgWhite)
			out := cmd.OutOrStdout()

			titleColor.Fprint(out, "cfnschema version: ")
			valueColor.Fprintln(out, Version)

			titleColor.Fprint(out, "Git commit: ")
			valueColor.Fprintln(out, GitCommit)

			titleColor.Fprint(out, "Build date: ")
			valueColor.Fprintln(out, BuildDate)

			titleColor.Fprint(out, "Go version: ")
			valueColor.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		if errorAlreadyReported(err) {
			return err
		}
		if ce, ok := cerrors.AsCompilerError(err); ok {
			rootCmd.PrintErrln(cerrors.FormatError(ce))
			return err
		}
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
