package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sudorandom/mobility-map/pkg/sources"
)

// Selector is the part of the scheduler the HTTP API drives.
type Selector interface {
	Source() sources.Source
	SwitchSource(id string) error
}

type SourceInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Layer  string `json:"layer"`
	Active bool   `json:"active"`
}

type Server struct {
	hub      *Hub
	selector Selector
	catalog  *sources.Catalog
	server   *http.Server
}

func NewServer(addr string, hub *Hub, selector Selector, catalog *sources.Catalog) *Server {
	s := &Server{hub: hub, selector: selector, catalog: catalog}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.hub.ServeWS)
	mux.HandleFunc("/api/sources", s.handleSources)
	mux.HandleFunc("/api/source", s.handleSwitch)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

// Start serves until ctx is done and then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown error")
		return s.server.Close()
	}
	return nil
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	active := s.selector.Source().ID
	out := make([]SourceInfo, 0, s.catalog.Len())
	for _, src := range s.catalog.All() {
		out = append(out, SourceInfo{ID: src.ID, Name: src.Name, Layer: src.Layer.String(), Active: src.ID == active})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing 'id' parameter")
		return
	}
	if err := s.selector.SwitchSource(id); err != nil {
		if errors.Is(err, sources.ErrUnknownSource) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "source": id})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Error writing response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
