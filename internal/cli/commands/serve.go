package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cerrors "github.com/cfnschema/cfnschema/internal/compiler/errors"
	"github.com/cfnschema/cfnschema/internal/compiler/pipeline"
	"github.com/cfnschema/cfnschema/internal/compiler/schema"
	"github.com/cfnschema/cfnschema/internal/watch"
	"github.com/cfnschema/cfnschema/internal/web/live"
	"github.com/cfnschema/cfnschema/internal/web/server"
)

var (
	serveAddr  string
	serveWatch bool
	servePprof bool
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [source]",
		Short: "Serve the compiled schema over HTTP",
		Long: `Compile a specification database and serve the result as JSON or YAML.

Routes:
  GET /resources                 resource document (?format=yaml for YAML)
  GET /resources/{type}          one resource, e.g. /resources/AWS::S3::Bucket
  GET /property-types            nested type document
  GET /property-types/{name}     one nested type
  GET /ids/{id}                  nested type by type definition id
  GET /namespaces/{namespace}    resources and nested types of a namespace
  GET /stats                     counts from the last build
  GET /healthz                   liveness
  GET /events                    websocket rebuild notifications (with --watch)`,
		Example: `  # Serve the configured source on the configured address
  cfnschema serve

  # Serve a local database and rebuild when it changes
  cfnschema serve spec.json --watch --addr :9090`,
		Args: cobra.MaximumNArgs(1),
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: serve.addr from config)")
	cmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "Rebuild when the source file changes")
	cmd.Flags().BoolVar(&servePprof, "pprof", false, "Expose pprof under /debug")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	source := a.source(args)
	addr := a.cfg.Serve.Addr
	if cmd.Flags().Changed("addr") {
		addr = serveAddr
	}
	if serveWatch && !watchable(source) {
		return fmt.Errorf("--watch requires a local file source, got %s", source)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var hub *live.Hub
	if serveWatch {
		hub = live.NewHub(a.logger)
	}
	srv := server.New(server.Options{Logger: a.logger, Hub: hub, Profiling: servePprof})

	doc, err := buildSchema(ctx, a, source)
	if err != nil {
		return err
	}
	if err := srv.Update(doc); err != nil {
		return err
	}

	if serveWatch {
		digest := newSourceDigest(source)
		fw, err := watch.NewFileWatcher([]string{source}, watch.Options{Logger: a.logger}, func(files []string) error {
			if !digest.changed() {
				a.logger.Debug("source unchanged, skipping rebuild", zap.Strings("files", files))
				return nil
			}
			start := time.Now()
			doc, err := buildSchema(ctx, a, source)
			if err != nil {
				hub.NotifyError(errorInfo(err))
				return err
			}
			if err := srv.Update(doc); err != nil {
				hub.NotifyError(errorInfo(err))
				return err
			}
			hub.NotifyRebuilt(doc.Stats, time.Since(start))
			return nil
		})
		if err != nil {
			return err
		}
		if err := fw.Start(); err != nil {
			return err
		}
		defer fw.Stop()
		a.logger.Info("watching for changes", zap.Strings("files", fw.Files()))
	}

	color.New(color.FgGreen, color.Bold).Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s\n", source, addr)
	return srv.ListenAndServe(ctx, addr)
}

func buildSchema(ctx context.Context, a *app, source string) (*schema.Document, error) {
	db, err := a.openDatabase(ctx, source)
	if err != nil {
		return nil, err
	}
	doc, err := pipeline.Build(ctx, db, a.pipelineOptions())
	if err != nil {
		a.logger.Warn("build failed", zap.Error(err))
		return nil, err
	}
	return doc, nil
}

func errorInfo(err error) *live.ErrorInfo {
	if ce, ok := cerrors.AsCompilerError(err); ok {
		return &live.ErrorInfo{Message: ce.Message, Code: string(ce.Code), Subject: ce.Subject}
	}
	return &live.ErrorInfo{Message: err.Error()}
}
