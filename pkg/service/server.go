package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tablekit/pkg/catalog"
	"tablekit/pkg/formats"
	"tablekit/pkg/logging"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Addr string
}

// Server serves a catalog over HTTP until its context is cancelled.
type Server struct {
	srv *http.Server
}

func NewServer(cfg Config, c *catalog.Catalog, r *formats.Registry) *Server {
	if r == nil {
		r = formats.NewRegistry()
	}
	router := NewRouter(NewTablesAPIController(c, r))
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	return &Server{srv: &http.Server{
		Addr:        cfg.Addr,
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}}
}

func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run blocks serving requests. Cancelling ctx shuts the server down
// gracefully and Run returns nil.
func (s *Server) Run(ctx context.Context) error {
	log := logging.WithComponent("service")
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info("shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
