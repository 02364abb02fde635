// Package server exposes the resize library over HTTP: originals under
// /source, on-demand renditions under /renditions/{preset}, and a JSON
// health probe. Renditions are produced through the Session API and
// persisted under the rendition dir, with a memory cache in front for
// hot entries.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-hclog"

	"imagefit"
	"imagefit/internal/config"
	"imagefit/internal/metrics"
	"imagefit/internal/middleware"
	"imagefit/internal/storage"
)

// cache sizing: renditions are small (tens of KB), 64 MiB of hot bytes
// covers a few thousand entries.
const (
	cacheNumCounters = 100_000
	cacheMaxCost     = 64 << 20
	cacheBufferItems = 64
)

// Config wires the server's collaborators. Logger and Recorder may be
// nil; Presets must not be empty for the rendition routes to be useful.
type Config struct {
	SourceDir          string
	RenditionDir       string
	Presets            map[string]config.Preset
	RateLimitPerMinute int
	Logger             hclog.Logger
	Recorder           *metrics.Recorder
}

type Server struct {
	cfg    Config
	logger hclog.Logger
	cache  *ristretto.Cache[string, []byte]
	router chi.Router

	// single-flight bookkeeping: the first request for a missing
	// rendition generates it, later ones wait on their channel.
	mu      sync.Mutex
	pending map[string][]chan error
}

func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: cacheNumCounters,
		MaxCost:     cacheMaxCost,
		BufferItems: cacheBufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("init rendition cache: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		logger:  cfg.Logger,
		cache:   cache,
		pending: make(map[string][]chan error),
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/source/*", s.handleSource)
	r.Group(func(r chi.Router) {
		if cfg.RateLimitPerMinute > 0 {
			limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
				RequestsPerMinute: cfg.RateLimitPerMinute,
				LockoutDuration:   5 * time.Minute,
				Logger:            cfg.Logger.Named("ratelimit"),
			})
			r.Use(limiter.Middleware())
		}
		r.Get("/renditions/{preset}/*", s.handleRendition)
	})
	s.router = r
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases the rendition cache.
func (s *Server) Close() {
	s.cache.Close()
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if err := validateKey(key); err != nil {
		s.logger.Error("invalid source key", "key", key, "error", err)
		http.Error(w, "Invalid key", http.StatusBadRequest)
		return
	}
	s.serveFile(w, r, storage.SourcePath(s.cfg.SourceDir, key))
}

func (s *Server) handleRendition(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "preset")
	preset, ok := s.cfg.Presets[name]
	if !ok {
		http.Error(w, "Unknown preset", http.StatusNotFound)
		return
	}

	key := chi.URLParam(r, "*")
	if err := validateKey(key); err != nil {
		s.logger.Error("invalid rendition key", "key", key, "error", err)
		http.Error(w, "Invalid key", http.StatusBadRequest)
		return
	}

	cacheKey := name + "/" + key
	if b, found := s.cache.Get(cacheKey); found {
		s.serveBytes(w, r, key, b)
		return
	}

	path := storage.RenditionPath(s.cfg.RenditionDir, name, key)
	if err := s.ensureRendition(name, preset, key, path); err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		s.logger.Error("rendition generation failed", "preset", name, "key", key, "error", err)
		http.Error(w, "Error", http.StatusInternalServerError)
		return
	}

	b, err := os.ReadFile(path)
	if err != nil {
		s.logger.Error("failed to read rendition", "path", path, "error", err)
		http.Error(w, "Error", http.StatusInternalServerError)
		return
	}
	s.cache.Set(cacheKey, b, int64(len(b)))
	s.serveBytes(w, r, key, b)
}

// ensureRendition makes sure the rendition file exists, generating it at
// most once even when many requests race for the same missing entry.
func (s *Server) ensureRendition(name string, preset config.Preset, key, path string) error {
	if storage.Exists(path) {
		return nil
	}

	s.mu.Lock()
	ch := make(chan error, 1)
	s.pending[path] = append(s.pending[path], ch)
	if len(s.pending[path]) == 1 {
		go s.generate(name, preset, key, path)
	}
	s.mu.Unlock()

	return <-ch
}

func (s *Server) generate(name string, preset config.Preset, key, path string) {
	start := time.Now()
	src := storage.SourcePath(s.cfg.SourceDir, key)
	if !storage.Exists(src) {
		s.finish(path, os.ErrNotExist)
		return
	}

	sess := imagefit.New().
		WithSource(src).
		WithBox(preset.MaxWidth, preset.MaxHeight, preset.Force).
		Save(path, preset.Quality)
	err := sess.Err()
	s.record(sess, name, preset, src, path, time.Since(start), err)
	if err != nil {
		s.finish(path, fmt.Errorf("render %s/%s: %w", name, key, err))
		return
	}
	s.finish(path, nil)
}

func (s *Server) finish(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.pending[path] {
		if err != nil {
			ch <- err
		}
		close(ch)
	}
	delete(s.pending, path)
}

// record writes a ledger entry, fire and forget. Ledger problems must
// never fail a request.
func (s *Server) record(sess *imagefit.Session, name string, preset config.Preset, src, dest string, took time.Duration, opErr error) {
	if s.cfg.Recorder == nil {
		return
	}
	_, w, h := sess.Source()
	e := metrics.Event{
		Source:    src,
		Dest:      dest,
		SrcWidth:  w,
		SrcHeight: h,
		MaxWidth:  preset.MaxWidth,
		MaxHeight: preset.MaxHeight,
		Forced:    preset.Force,
		Preset:    name,
		Outcome:   metrics.OutcomeOK,
		Duration:  took,
	}
	if opErr != nil {
		e.Outcome = metrics.OutcomeError
		e.Detail = opErr.Error()
	}
	if err := s.cfg.Recorder.Record(context.Background(), e); err != nil {
		s.logger.Warn("failed to record resize event", "error", err)
	}
}

func (s *Server) serveBytes(w http.ResponseWriter, r *http.Request, key string, b []byte) {
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(b))
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil && !os.IsNotExist(err) {
		s.logger.Error("failed to open file", "path", path, "error", err)
		http.Error(w, "Error", http.StatusInternalServerError)
		return
	}
	if os.IsNotExist(err) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		s.logger.Error("failed to stat file", "path", path, "error", err)
		http.Error(w, "Error", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, path, fi.ModTime(), f)
}
