// Package devserver serves a directory of .qhtml files as compiled HTML,
// recompiling on change and pushing live-reload events to connected
// browsers.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/qhtml/qhtml-go/pkg/qhtml"
	"github.com/qhtml/qhtml-go/pkg/qhtml/htmlout"
)

// Server compiles and serves qHTML sources out of a root directory.
type Server struct {
	root string
	addr string
	log  zerolog.Logger
	hub  *hub
}

// New creates a dev server rooted at dir.
func New(dir, addr string, log zerolog.Logger) (*Server, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return &Server{
		root: dir,
		addr: addr,
		log:  log,
		hub:  newHub(log),
	}, nil
}

// Router builds the HTTP routes: compiled pages, static assets and the
// live-reload websocket endpoint.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.hub.handleWS)
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		s.servePage(w, "index")
	})
	r.Get("/{page}", func(w http.ResponseWriter, req *http.Request) {
		s.servePage(w, chi.URLParam(req, "page"))
	})

	staticDir := filepath.Join(s.root, "static")
	if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}
	return r
}

// ListenAndServe runs the server and the source watcher until ctx is
// done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	go func() {
		if err := s.watch(ctx); err != nil {
			s.log.Error().Err(err).Msg("source watcher stopped")
		}
	}()

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.addr).Str("root", s.root).Msg("dev server listening")
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) servePage(w http.ResponseWriter, page string) {
	if strings.ContainsAny(page, "/\\.") {
		http.Error(w, "bad page name", http.StatusBadRequest)
		return
	}
	path := filepath.Join(s.root, page+".qhtml")
	raw, err := os.ReadFile(path)
	if err != nil {
		http.NotFound(w, nil)
		return
	}

	// a fresh compiler per request keeps edited definitions from going
	// stale between reloads
	compiler := qhtml.New(qhtml.WithLogger(s.log), qhtml.WithWrapBareResults(true))
	d := qhtml.NewDiagnostics(s.log)
	src := qhtml.AssembleImports(string(raw), s.fileFetcher(), qhtml.DefaultImportLimit, d)
	result := compiler.Compile(src)

	body := htmlout.Page(page, result.Roots)
	body = strings.Replace(body, "</body>", reloadScript+"</body>", 1)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(body))
}

// fileFetcher resolves q-import references against the server root.
func (s *Server) fileFetcher() qhtml.FetchFunc {
	return func(ref string) (string, error) {
		clean := filepath.Clean("/" + ref)
		data, err := os.ReadFile(filepath.Join(s.root, clean))
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
