package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/triage/internal/dispatch"
	"github.com/hyperjump/triage/internal/models"
	"github.com/hyperjump/triage/internal/profile"
	"github.com/hyperjump/triage/internal/storage"
	"github.com/hyperjump/triage/internal/triage"
)

const (
	processingFailure = "Processing failure"
	maxAudioBytes     = 25 << 20
)

var audioTypes = map[string]bool{
	"audio/wav":  true,
	"audio/mpeg": true,
}

func (s *Server) handleEmergency(w http.ResponseWriter, r *http.Request) {
	var req models.EmergencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Info("emergency request received", zap.String("user_id", req.UserID))

	resp, err := s.deps.Triage.Run(r.Context(), req)
	if err == nil {
		s.respondJSON(w, http.StatusOK, resp)
		return
	}

	var derr *dispatch.Error
	switch {
	case errors.Is(err, triage.ErrProfileNotFound):
		s.respondError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, dispatch.ErrUnmatched):
		s.respondJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.As(err, &derr):
		s.respondJSON(w, http.StatusBadGateway, resp)
	case errors.Is(err, triage.ErrDecisionUnavailable):
		s.respondJSON(w, http.StatusServiceUnavailable, resp)
	default:
		s.logger.Error("emergency processing failed", zap.String("user_id", req.UserID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, processingFailure)
	}
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var p models.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := p.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.deps.Profiles.Update(r.Context(), &p)
	if err != nil {
		s.logger.Error("profile update failed", zap.String("user_id", p.UserID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, processingFailure)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, map[string]interface{}{"status": "success", "result": res})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	p, err := s.deps.Profiles.Get(r.Context(), userID)
	if profile.IsNotFound(err) {
		s.respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		s.logger.Error("profile read failed", zap.String("user_id", userID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, processingFailure)
		return
	}
	s.respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.deps.Transcriber == nil {
		s.respondError(w, http.StatusNotImplemented, "transcription not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if !audioTypes[contentType] {
		drain(file)
		s.respondError(w, http.StatusUnsupportedMediaType, "Unsupported audio")
		return
	}
	text, err := s.deps.Transcriber.Transcribe(r.Context(), header.Filename, file)
	if err != nil {
		s.logger.Error("transcription failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, "transcription failed")
		return
	}
	if text == "" {
		s.respondError(w, http.StatusBadRequest, "No speech detected")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "success", "transcription": text})
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"index": s.deps.Index.Status(),
	}
	if len(s.deps.DataPaths) > 0 {
		diskBytes, err := storage.DiskUsageBytes(s.deps.DataPaths...)
		if err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"status": "error", "detail": message})
}
