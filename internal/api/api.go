package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Majidul17068/carevoice/internal/flow"
	"github.com/Majidul17068/carevoice/internal/models"
)

// Server exposes report sessions over HTTP: starting a conversation, reading
// its message log, submitting a post-session summary edit, and stopping it.
// The dialogue itself runs in a background goroutine per session; the HTTP
// layer only observes and controls it.
type Server struct {
	registry *flow.Registry
	dialogue *flow.Dialogue
}

// NewServer creates an API server over the given registry and dialogue engine.
func NewServer(registry *flow.Registry, dialogue *flow.Dialogue) *Server {
	return &Server{registry: registry, dialogue: dialogue}
}

// Handler returns the route table for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /conversations", s.startConversationHandler)
	mux.HandleFunc("GET /conversations/{id}", s.getConversationHandler)
	mux.HandleFunc("POST /conversations/{id}/summary", s.editSummaryHandler)
	mux.HandleFunc("POST /conversations/{id}/stop", s.stopConversationHandler)
	return mux
}

// Run serves the API on the given address, shutting down when ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("Server.Run: shutdown failed", "error", err)
		}
	}()
	slog.Info("Server.Run: listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type startConversationRequest struct {
	ResidentID        string `json:"resident_id"`
	ResidentName      string `json:"resident_name"`
	ReportingPersonID string `json:"reporting_person_id"`
	ReportingPerson   string `json:"reporting_person"`
}

type editSummaryRequest struct {
	EditedText string `json:"edited_text"`
}

func (s *Server) startConversationHandler(w http.ResponseWriter, r *http.Request) {
	var req startConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}
	if req.ResidentName == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse(models.ErrEmptyResidentName.Error()))
		return
	}
	if req.ReportingPerson == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse(models.ErrEmptyReportingPerson.Error()))
		return
	}

	conv := s.registry.Create(req.ResidentID, req.ResidentName, req.ReportingPersonID, req.ReportingPerson)
	if err := s.dialogue.Claim(conv.ID); err != nil {
		s.registry.Remove(conv.ID)
		slog.Warn("Server.startConversationHandler: station busy", "error", err)
		writeJSON(w, http.StatusConflict, errorResponse(err.Error()))
		return
	}
	go func() {
		if err := s.dialogue.Run(context.Background(), conv.ID); err != nil {
			slog.Error("Server.startConversationHandler: session failed", "id", conv.ID, "error", err)
		}
	}()

	slog.Info("Server.startConversationHandler: session launched", "id", conv.ID)
	writeJSON(w, http.StatusCreated, successResponse(map[string]string{"conversation_id": conv.ID}))
}

func (s *Server) getConversationHandler(w http.ResponseWriter, r *http.Request) {
	conv, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse(err.Error()))
		return
	}
	// Serve a locked copy; the session goroutine may still be appending.
	writeJSON(w, http.StatusOK, successResponse(conv.View()))
}

func (s *Server) editSummaryHandler(w http.ResponseWriter, r *http.Request) {
	conv, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse(err.Error()))
		return
	}

	var req editSummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return
	}

	summary, err := s.dialogue.Finalizer().ApplyEdit(r.Context(), conv, req.EditedText)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, successResponse(map[string]string{"summary": summary}))
}

func (s *Server) stopConversationHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.dialogue.Stop(r.PathValue("id")); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, successResponse(map[string]string{"message": "conversation stopped"}))
}
