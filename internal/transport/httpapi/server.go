// Package httpapi accepts messages over HTTP and exposes health, memory and
// metrics endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sandevgo/companion/internal/config"
	"github.com/sandevgo/companion/internal/core"
	"github.com/sandevgo/companion/internal/observability"
	"github.com/sandevgo/companion/pkg/log"
)

const (
	TransportName = "http"
	// recentTurnsLimit caps the turns returned by the memory endpoint.
	recentTurnsLimit = 20
)

type MessageRequest struct {
	ChatID   string `json:"chat_id"`
	Sender   string `json:"sender"`
	Username string `json:"username"`
	Group    bool   `json:"group"`
	Content  string `json:"content"`
}

type MessageResponse struct {
	Status   string `json:"status"`
	QueueKey string `json:"queue_key"`
}

type MemoryResponse struct {
	Persona    string      `json:"persona"`
	UserID     string      `json:"user_id"`
	CoreMemory string      `json:"core_memory"`
	Recent     []core.Turn `json:"recent"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type Server struct {
	cfg        *config.HTTPConfig
	persona    string
	dispatcher core.Dispatcher
	memory     core.MemoryService
	metrics    *observability.Metrics
	srv        *http.Server
}

func New(
	cfg *config.HTTPConfig,
	persona string,
	dispatcher core.Dispatcher,
	memory core.MemoryService,
	metrics *observability.Metrics,
) *Server {
	s := &Server{
		cfg:        cfg,
		persona:    persona,
		dispatcher: dispatcher,
		memory:     memory,
		metrics:    metrics,
	}
	s.srv = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.Router(),
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Handler().ServeHTTP(w, r)
	})
	r.Post("/v1/messages", s.handleMessage)
	r.Get("/v1/memory/{user}", s.handleMemory)

	return r
}

func (s *Server) Start(ctx context.Context) error {
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }
	log.FromCtx(ctx).Info().Str("addr", s.cfg.Addr).Msg("starting http api")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http api: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	sctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(sctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"persona": s.persona,
	})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	req.ChatID = strings.TrimSpace(req.ChatID)
	if req.ChatID == "" {
		respondError(w, http.StatusBadRequest, "missing_chat_id", "chat_id is required")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		respondError(w, http.StatusBadRequest, "empty_content", "content is required")
		return
	}
	if req.Sender == "" {
		req.Sender = req.ChatID
	}

	meta := core.SenderMeta{
		Transport:  TransportName,
		ChatID:     req.ChatID,
		SenderName: req.Sender,
		Username:   req.Username,
		IsGroup:    req.Group,
	}
	s.dispatcher.Dispatch(r.Context(), req.Content, meta)

	respondJSON(w, http.StatusAccepted, MessageResponse{Status: "queued", QueueKey: meta.QueueKey()})
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(chi.URLParam(r, "user"))
	if user == "" {
		respondError(w, http.StatusBadRequest, "missing_user", "user is required")
		return
	}

	ctx := r.Context()
	respondJSON(w, http.StatusOK, MemoryResponse{
		Persona:    s.persona,
		UserID:     user,
		CoreMemory: s.memory.GetCoreMemory(ctx, s.persona, user),
		Recent:     s.memory.RecentTurns(ctx, s.persona, user, recentTurnsLimit),
	})
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
