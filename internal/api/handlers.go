// Package api provides HTTP handlers for Veerkracht endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/VeerkrachtLab/veerkracht/internal/match"
	"github.com/VeerkrachtLab/veerkracht/internal/models"
	"github.com/VeerkrachtLab/veerkracht/internal/orchestrator"
	"github.com/VeerkrachtLab/veerkracht/internal/store"
)

// DefaultAuditLimit bounds GET /audit responses when no limit is given.
const DefaultAuditLimit = 50

// orchestrateRequest is the POST /orchestrate payload.
type orchestrateRequest struct {
	SessionID string                       `json:"session_id"`
	Utterance string                       `json:"utterance"`
	Locale    string                       `json:"locale,omitempty"`
	Consent   bool                         `json:"consent,omitempty"`
	History   []models.ConversationMessage `json:"history,omitempty"`
	AgeBand   string                       `json:"age_band,omitempty"`
	TimeOfDay string                       `json:"time_of_day,omitempty"`
	Situation string                       `json:"situation,omitempty"`
}

// weightUpdateRequest is the POST /seeds/weight payload.
type weightUpdateRequest struct {
	SeedID string  `json:"seed_id"`
	Weight float64 `json:"weight"`
}

func (s *Server) orchestrateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.orchestrateHandler: processing orchestrate request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.orchestrateHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req orchestrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.orchestrateHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if strings.TrimSpace(req.Utterance) == "" {
		slog.Warn("Server.orchestrateHandler: missing utterance")
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: utterance"))
		return
	}

	result := s.orch.Orchestrate(r.Context(), orchestrator.Request{
		SessionID: req.SessionID,
		Utterance: req.Utterance,
		Locale:    req.Locale,
		Consent:   req.Consent,
		History:   req.History,
		Match: match.Context{
			AgeBand:   req.AgeBand,
			TimeOfDay: req.TimeOfDay,
			Situation: req.Situation,
		},
	})

	slog.Info("Server.orchestrateHandler: request orchestrated",
		"requestID", result.RequestID, "label", result.Label, "path", result.Metadata.ProcessingPath)
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// seedsHandler routes /seeds, /seeds/weight, and /seeds/{id}.
func (s *Server) seedsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.seedsHandler: processing seeds request", "method", r.Method, "path", r.URL.Path)

	path := strings.TrimPrefix(r.URL.Path, "/seeds")
	path = strings.TrimPrefix(path, "/")

	switch {
	case path == "":
		switch r.Method {
		case http.MethodGet:
			s.listSeedsHandler(w, r)
		case http.MethodPost:
			s.insertSeedHandler(w, r)
		default:
			w.Header().Set("Allow", "GET, POST")
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		}
	case path == "weight":
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
			return
		}
		s.updateWeightHandler(w, r)
	case !strings.Contains(path, "/"):
		if r.Method != http.MethodDelete {
			w.Header().Set("Allow", http.MethodDelete)
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
			return
		}
		s.deactivateSeedHandler(w, r, path)
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown seeds endpoint"))
	}
}

func (s *Server) listSeedsHandler(w http.ResponseWriter, r *http.Request) {
	filter := store.SeedFilter{
		Emotion: r.URL.Query().Get("emotion"),
		Type:    models.SeedType(r.URL.Query().Get("type")),
		Tag:     r.URL.Query().Get("tag"),
	}
	seeds, err := s.st.ListActiveSeeds(r.Context(), filter)
	if err != nil {
		slog.Error("Server.listSeedsHandler: failed to list seeds", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch seeds"))
		return
	}
	slog.Debug("Server.listSeedsHandler: seeds fetched", "count", len(seeds))
	writeJSONResponse(w, http.StatusOK, models.Success(seeds))
}

func (s *Server) insertSeedHandler(w http.ResponseWriter, r *http.Request) {
	var seed models.Seed
	if err := json.NewDecoder(r.Body).Decode(&seed); err != nil {
		slog.Warn("Server.insertSeedHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := seed.Validate(); err != nil {
		slog.Warn("Server.insertSeedHandler: validation failed", "error", err, "seedID", seed.ID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	seed.Active = true
	if err := s.st.InsertSeed(r.Context(), seed); err != nil {
		if errors.Is(err, store.ErrDuplicateSeed) {
			slog.Warn("Server.insertSeedHandler: duplicate seed", "seedID", seed.ID)
			writeJSONResponse(w, http.StatusConflict, models.Error("Seed already exists"))
			return
		}
		slog.Error("Server.insertSeedHandler: failed to insert seed", "error", err, "seedID", seed.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store seed"))
		return
	}
	slog.Info("Server.insertSeedHandler: seed stored", "seedID", seed.ID, "emotion", seed.Emotion)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Seed stored successfully", seed.ID))
}

func (s *Server) updateWeightHandler(w http.ResponseWriter, r *http.Request) {
	var req weightUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.updateWeightHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.SeedID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: seed_id"))
		return
	}
	if req.Weight < 0 {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Weight must be >= 0"))
		return
	}
	if err := s.st.UpdateWeight(r.Context(), req.SeedID, req.Weight); err != nil {
		if errors.Is(err, store.ErrSeedNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Seed not found"))
			return
		}
		slog.Error("Server.updateWeightHandler: failed to update weight", "error", err, "seedID", req.SeedID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update weight"))
		return
	}
	slog.Info("Server.updateWeightHandler: weight updated", "seedID", req.SeedID, "weight", req.Weight)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Weight updated successfully", nil))
}

func (s *Server) deactivateSeedHandler(w http.ResponseWriter, r *http.Request, seedID string) {
	if err := s.st.DeactivateSeed(r.Context(), seedID); err != nil {
		if errors.Is(err, store.ErrSeedNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Seed not found"))
			return
		}
		slog.Error("Server.deactivateSeedHandler: failed to deactivate seed", "error", err, "seedID", seedID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to deactivate seed"))
		return
	}
	slog.Info("Server.deactivateSeedHandler: seed deactivated", "seedID", seedID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Seed deactivated successfully", nil))
}

// auditHandler returns recent audit events for a session (GET /audit).
func (s *Server) auditHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.auditHandler: processing audit request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required parameter: session"))
		return
	}
	limit := DefaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid limit parameter"))
			return
		}
		limit = parsed
	}
	events, err := s.st.ListAuditEvents(r.Context(), sessionID, limit)
	if err != nil {
		slog.Error("Server.auditHandler: failed to list audit events", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fetch audit events"))
		return
	}
	slog.Debug("Server.auditHandler: events fetched", "sessionID", sessionID, "count", len(events))
	writeJSONResponse(w, http.StatusOK, models.Success(events))
}

// healthHandler provides a health check endpoint for monitoring and load balancing
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	// Seed corpus reachability doubles as the store health probe.
	seeds, err := s.st.ListActiveSeeds(r.Context(), store.SeedFilter{})
	if err != nil {
		slog.Warn("Health check: failed to reach seed store", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "Failed to reach seed store"
	} else {
		healthData["active_seeds"] = len(seeds)
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, statusCode, healthData)
}
