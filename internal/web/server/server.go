// Package server serves a built schema document over HTTP.
//
// The document is swapped atomically by Update, so a watch loop can rebuild
// in the background while requests keep reading the previous document.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/cfnschema/cfnschema/internal/cli/ui"
	"github.com/cfnschema/cfnschema/internal/compiler/schema"
	"github.com/cfnschema/cfnschema/internal/web/live"
	"github.com/cfnschema/cfnschema/internal/web/middleware"
	"github.com/cfnschema/cfnschema/internal/web/response"
)

// Options configures a Server.
type Options struct {
	Logger *zap.Logger
	// Hub, when set, is mounted at /events.
	Hub *live.Hub
	// Profiling mounts pprof under /debug.
	Profiling bool
}

// snapshot is one served document with its pre-encoded full documents.
type snapshot struct {
	doc     *schema.Document
	encoded map[schema.Format]*schema.Encoded
	built   time.Time
}

// Server serves the most recent document passed to Update.
type Server struct {
	current atomic.Pointer[snapshot]
	router  chi.Router
	logger  *zap.Logger
	hub     *live.Hub
}

// New creates a server with no document. Schema routes answer 503 until
// the first Update.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{logger: logger.Named("server"), hub: opts.Hub}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(),
		middleware.Logging(s.logger, "/healthz"),
		middleware.Recovery(s.logger),
	)

	r.Get("/healthz", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(s.requireDocument)
		r.Get("/stats", s.handleStats)
		r.Get("/resources", s.handleResources)
		r.Get("/resources/{name}", s.handleResource)
		r.Get("/property-types", s.handlePropertyTypes)
		r.Get("/property-types/{name}", s.handlePropertyType)
		r.Get("/ids/{id}", s.handleID)
		r.Get("/namespaces/{namespace}", s.handleNamespace)
	})
	if s.hub != nil {
		r.Handle("/events", s.hub)
	}
	if opts.Profiling {
		r.Mount("/debug", chimw.Profiler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "", fmt.Sprintf("no route for %s", r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "method_not_allowed", fmt.Sprintf("%s not allowed", r.Method))
	})

	s.router = r
	return s
}

// Update encodes doc and makes it the served document.
func (s *Server) Update(doc *schema.Document) error {
	if doc == nil {
		return fmt.Errorf("document cannot be nil")
	}

	snap := &snapshot{
		doc:     doc,
		encoded: make(map[schema.Format]*schema.Encoded, 2),
		built:   time.Now().UTC(),
	}
	for _, f := range []schema.Format{schema.FormatJSON, schema.FormatYAML} {
		enc, err := schema.Encode(doc, f)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", f, err)
		}
		snap.encoded[f] = enc
	}

	s.current.Store(snap)
	s.logger.Info("schema updated",
		zap.Int("resources", doc.Stats.Resources),
		zap.Int("property_types", doc.Stats.PropertyTypes))
	return nil
}

// Document returns the served document, or nil before the first Update.
func (s *Server) Document() *schema.Document {
	if snap := s.current.Load(); snap != nil {
		return snap.doc
	}
	return nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	if s.hub != nil {
		s.hub.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

type snapshotKey struct{}

func (s *Server) requireDocument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := s.current.Load()
		if snap == nil {
			response.Error(w, http.StatusServiceUnavailable, "", "schema has not been built yet")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), snapshotKey{}, snap)))
	})
}

func snapshotFrom(r *http.Request) *snapshot {
	return r.Context().Value(snapshotKey{}).(*snapshot)
}

// requestFormat reads ?format=, defaulting to JSON.
func requestFormat(w http.ResponseWriter, r *http.Request) (schema.Format, bool) {
	f, err := schema.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "", err.Error())
		return "", false
	}
	return f, true
}

func contentType(f schema.Format) string {
	if f == schema.FormatYAML {
		return response.ContentTypeYAML
	}
	return response.ContentTypeJSON
}

// write serializes v in the requested format.
func write(w http.ResponseWriter, r *http.Request, v any) {
	f, ok := requestFormat(w, r)
	if !ok {
		return
	}
	body, err := schema.Serialize(v, f)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "", err.Error())
		return
	}
	response.Body(w, r, contentType(f), body)
}

// param returns a decoded path parameter. Names such as AWS::S3::Bucket
// may arrive percent-encoded.
func param(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func notFound(w http.ResponseWriter, kind, name string, candidates []string) {
	response.Error(w, http.StatusNotFound, "", fmt.Sprintf("%s %q not found", kind, name),
		ui.FindSimilar(name, candidates, 3)...)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok", "ready": false}
	if snap := s.current.Load(); snap != nil {
		status["ready"] = true
		status["built_at"] = snap.built.Format(time.RFC3339)
	}
	response.JSON(w, r, status)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, snapshotFrom(r).doc.Stats)
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	f, ok := requestFormat(w, r)
	if !ok {
		return
	}
	response.Body(w, r, contentType(f), snapshotFrom(r).encoded[f].Resources)
}

func (s *Server) handlePropertyTypes(w http.ResponseWriter, r *http.Request) {
	f, ok := requestFormat(w, r)
	if !ok {
		return
	}
	response.Body(w, r, contentType(f), snapshotFrom(r).encoded[f].PropertyTypes)
}

func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	doc := snapshotFrom(r).doc
	name := param(r, "name")

	res, ok := doc.Resources.Get(name)
	if !ok {
		notFound(w, "resource", name, resourceNames(doc))
		return
	}
	write(w, r, res)
}

func (s *Server) handlePropertyType(w http.ResponseWriter, r *http.Request) {
	doc := snapshotFrom(r).doc
	name := param(r, "name")

	pt, ok := doc.PropertyTypes.Get(name)
	if !ok {
		notFound(w, "property type", name, propertyTypeNames(doc))
		return
	}
	write(w, r, pt)
}

// idEntry answers /ids/{id}.
type idEntry struct {
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	PropertyType *schema.PropertyType `json:"propertyType"`
}

func (s *Server) handleID(w http.ResponseWriter, r *http.Request) {
	doc := snapshotFrom(r).doc
	id := param(r, "id")

	name, ok := doc.TypeIndex.Get(id)
	if !ok {
		notFound(w, "type definition", id, typeIDs(doc))
		return
	}
	pt, _ := doc.PropertyTypes.Get(name)
	write(w, r, &idEntry{ID: id, Name: name, PropertyType: pt})
}

// namespaceEntry answers /namespaces/{namespace}.
type namespaceEntry struct {
	Namespace     string   `json:"namespace"`
	Resources     []string `json:"resources"`
	PropertyTypes []string `json:"propertyTypes"`
}

func (s *Server) handleNamespace(w http.ResponseWriter, r *http.Request) {
	doc := snapshotFrom(r).doc
	ns := param(r, "namespace")
	prefix := ns + "::"

	entry := &namespaceEntry{Namespace: ns, Resources: []string{}, PropertyTypes: []string{}}
	namespaces := make(map[string]bool)
	for pair := doc.Resources.Oldest(); pair != nil; pair = pair.Next() {
		if strings.HasPrefix(pair.Key, prefix) {
			entry.Resources = append(entry.Resources, pair.Key)
		}
		if i := strings.LastIndex(pair.Key, "::"); i > 0 {
			namespaces[pair.Key[:i]] = true
		}
	}
	for pair := doc.PropertyTypes.Oldest(); pair != nil; pair = pair.Next() {
		if strings.HasPrefix(pair.Key, prefix) {
			entry.PropertyTypes = append(entry.PropertyTypes, pair.Key)
		}
	}

	if len(entry.Resources) == 0 {
		candidates := make([]string, 0, len(namespaces))
		for n := range namespaces {
			candidates = append(candidates, n)
		}
		sort.Strings(candidates)
		notFound(w, "namespace", ns, candidates)
		return
	}
	write(w, r, entry)
}

func resourceNames(doc *schema.Document) []string {
	out := make([]string, 0, doc.Resources.Len())
	for pair := doc.Resources.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

func propertyTypeNames(doc *schema.Document) []string {
	out := make([]string, 0, doc.PropertyTypes.Len())
	for pair := doc.PropertyTypes.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

func typeIDs(doc *schema.Document) []string {
	out := make([]string, 0, doc.TypeIndex.Len())
	for pair := doc.TypeIndex.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}
