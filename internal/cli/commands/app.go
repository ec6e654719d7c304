package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cfnschema/cfnschema/internal/cli/config"
	"github.com/cfnschema/cfnschema/internal/cli/ui"
	cerrors "github.com/cfnschema/cfnschema/internal/compiler/errors"
	"github.com/cfnschema/cfnschema/internal/compiler/pipeline"
	"github.com/cfnschema/cfnschema/internal/logging"
	"github.com/cfnschema/cfnschema/internal/specdb"
)

// app is the state shared by commands that compile a database.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

// loadApp reads configuration and builds the logger. Global flags take
// precedence over the config file.
func loadApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.LoadFrom(".", rootConfigFile)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), rootNoColor))
		return nil, &reportedError{err: err}
	}

	logOpts := cfg.LogOptions()
	if rootLogLevel != "" {
		if _, err := logging.ParseLevel(rootLogLevel); err != nil {
			return nil, err
		}
		logOpts.Level = rootLogLevel
	}
	if rootVerbose {
		logOpts.Level = "debug"
	}
	logOpts.Quiet = rootQuiet

	return &app{cfg: cfg, logger: logging.NewOrNop(logOpts)}, nil
}

// source returns the positional source argument, or the configured one.
func (a *app) source(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return a.cfg.Source
}

func (a *app) openDatabase(ctx context.Context, source string) (*specdb.Snapshot, error) {
	return specdb.Open(ctx, source, specdb.OpenOptions{
		S3:     a.cfg.S3Options(),
		Logger: a.logger,
	})
}

func (a *app) pipelineOptions() pipeline.Options {
	return pipeline.Options{
		Roots:   a.cfg.Naming.Roots,
		TagType: a.cfg.Naming.TagType,
		Logger:  a.logger,
	}
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// reportedError marks an error the command already printed, so Execute
// only sets the exit status.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func errorAlreadyReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

// reportJSON prints err as JSON on the command's output.
func reportJSON(cmd *cobra.Command, err error) error {
	if errorAlreadyReported(err) {
		return err
	}

	var out string
	if ce, ok := cerrors.AsCompilerError(err); ok {
		text, jsonErr := ce.ToJSON()
		if jsonErr != nil {
			return err
		}
		out = text
	} else {
		data, jsonErr := json.MarshalIndent(map[string]string{
			"type":     "command_failed",
			"severity": string(cerrors.SeverityError),
			"message":  err.Error(),
		}, "", "  ")
		if jsonErr != nil {
			return err
		}
		out = string(data)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return &reportedError{err: err}
}
