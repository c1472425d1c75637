package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/lox/drillboard/internal/chat"
	"github.com/lox/drillboard/internal/metrics"
	"github.com/lox/drillboard/internal/models"
)

const (
	maxChatBodyBytes = 1 << 20
	chatTimeout      = 30 * time.Second
)

type chatRequest struct {
	Message  string          `json:"message"`
	WellID   string          `json:"wellId"`
	WellData []models.Record `json:"wellData"`
}

type chatResponse struct {
	Success   bool      `json:"success"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// handleChat never surfaces assistant failures as HTTP errors; the user
// gets the fallback text with success=false.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	records := req.WellData
	if req.WellID != "" {
		stored, err := s.datasets.Get(r.Context(), req.WellID)
		if err != nil {
			log.Printf("chat: load dataset %s: %v", req.WellID, err)
		} else if len(stored) > 0 {
			records = stored
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), chatTimeout)
	defer cancel()

	backend := s.assistant.Name()
	start := time.Now()
	answer, err := s.assistant.Ask(ctx, req.Message, chat.ContextRecords(records))
	metrics.ChatLatency.WithLabelValues(backend).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Printf("chat: %s: %v", backend, err)
		metrics.ChatRequestsTotal.WithLabelValues(backend, "fallback").Inc()
		writeJSON(w, http.StatusOK, chatResponse{
			Success:   false,
			Response:  chat.FallbackResponse,
			Timestamp: time.Now().UTC(),
		})
		return
	}

	metrics.ChatRequestsTotal.WithLabelValues(backend, "success").Inc()
	writeJSON(w, http.StatusOK, chatResponse{
		Success:   true,
		Response:  answer,
		Timestamp: time.Now().UTC(),
	})
}
