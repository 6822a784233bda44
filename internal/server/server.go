// Package server exposes the task registry and orchestrator over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/vidgrab/vidgrab/internal/config"
	"github.com/vidgrab/vidgrab/internal/download"
	"github.com/vidgrab/vidgrab/internal/model"
	"github.com/vidgrab/vidgrab/internal/task"
)

type Server struct {
	registry  *task.Registry
	downloads *download.Service
	cfg       config.Config
	log       *slog.Logger
	httpSrv   *http.Server
}

func New(cfg config.Config, registry *task.Registry, downloads *download.Service, log *slog.Logger) *Server {
	s := &Server{
		registry:  registry,
		downloads: downloads,
		cfg:       cfg,
		log:       log,
	}
	s.httpSrv = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: s.Routes(),
	}
	return s
}

// Routes builds the request mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Static files (web UI), if a web dir is present.
	if st, err := os.Stat(s.cfg.WebDir); err == nil && st.IsDir() {
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.WebDir)))
	}

	mux.HandleFunc("POST /download", s.handleSubmit)
	mux.HandleFunc("GET /task/{id}", s.handleTask)
	mux.HandleFunc("GET /tasks", s.handleTasks)
	mux.HandleFunc("GET /download/{id}/file", s.handleFile)
	mux.HandleFunc("GET /info", s.handleInfo)
	mux.HandleFunc("GET /formats", s.handleFormats)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	return mux
}

func (s *Server) Start() error {
	s.log.Info("server starting", "addr", s.cfg.ListenAddr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

type submitRequest struct {
	URL        string `json:"url"`
	OutputPath string `json:"output_path"`
	Format     string `json:"format"`
	CookieFile string `json:"cookie_file"`
	// Cookies carries inline cookie text; it is written to a temporary
	// file removed when the task finishes.
	Cookies string `json:"cookies"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if body.URL == "" {
		http.Error(w, "url is required", 400)
		return
	}
	if _, err := url.ParseRequestURI(body.URL); err != nil {
		http.Error(w, "invalid url", 400)
		return
	}
	if body.OutputPath == "" {
		body.OutputPath = s.cfg.DownloadDir
	}
	if body.Format == "" {
		body.Format = s.cfg.DefaultFormat
	}

	req := model.Request{
		URL:        body.URL,
		OutputDir:  body.OutputPath,
		Format:     body.Format,
		CookieFile: body.CookieFile,
	}

	if body.Cookies != "" {
		path, err := writeTempCookies(body.Cookies)
		if err != nil {
			http.Error(w, "store cookies: "+err.Error(), 500)
			return
		}
		req.CookieFile = path
		req.CookieFileTemp = true
	}

	id, existing := s.downloads.Submit(req)
	if existing {
		s.log.Debug("duplicate submission short-circuited", "id", id, "url", req.URL)
	}
	writeJSON(w, 200, map[string]any{"status": "success", "task_id": id})
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, ok := s.registry.Get(id)
	if !ok {
		http.Error(w, fmt.Sprintf("task with ID %s not found", id), 404)
		return
	}
	writeJSON(w, 200, map[string]any{"status": "success", "data": t})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]any{"status": "success", "data": s.registry.List()})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, ok := s.registry.Get(id)
	if !ok {
		http.Error(w, fmt.Sprintf("task with ID %s not found", id), 404)
		return
	}
	if t.Status != model.StatusCompleted {
		http.Error(w, fmt.Sprintf("task is not completed yet, current status: %s", t.Status), 400)
		return
	}
	if t.Result == nil || t.Result.Filepath == "" {
		http.Error(w, "task completed but no result file recorded", 500)
		return
	}
	path := t.Result.Filepath
	if _, err := os.Stat(path); err != nil {
		http.Error(w, "video file not found on server", 404)
		return
	}

	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, path)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		http.Error(w, "url query parameter is required", 400)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ProbeTimeout)
	defer cancel()

	info, err := s.downloads.Probe(ctx, rawURL)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, map[string]any{"status": "success", "data": info})
}

func (s *Server) handleFormats(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		http.Error(w, "url query parameter is required", 400)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ProbeTimeout)
	defer cancel()

	info, err := s.downloads.Probe(ctx, rawURL)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, map[string]any{"status": "success", "data": info.Formats})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]any{"status": "ok", "time": time.Now().UTC()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeTempCookies(content string) (string, error) {
	f, err := os.CreateTemp("", "cookies-*.txt")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
