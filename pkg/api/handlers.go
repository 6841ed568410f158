package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/tradekit/stratrunner/pkg/models"
	"github.com/tradekit/stratrunner/pkg/runtime"
	"github.com/tradekit/stratrunner/pkg/storage"
)

// batchSnapshotResponse is the body of the batch snapshot endpoint
type batchSnapshotResponse struct {
	Logs []models.ExecutionSnapshot `json:"logs"`
}

// handleBatchSnapshot returns the live log for each requested execution id
// that currently has one. Ids with no live document are omitted entirely;
// the consumer infers "no live data" from absence. A missing or empty ids
// parameter yields an empty result, not an error, so the polling client
// stays resilient.
func (s *Server) handleBatchSnapshot(w http.ResponseWriter, r *http.Request) {
	response := batchSnapshotResponse{Logs: []models.ExecutionSnapshot{}}

	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}

		doc, err := s.logger.Snapshot(r.Context(), id)
		if err == storage.ErrKeyNotFound {
			continue
		}
		if err != nil {
			http.Error(w, "Failed to read execution logs", http.StatusInternalServerError)
			return
		}

		events := doc.Events
		if events == nil {
			events = []models.Event{}
		}
		response.Logs = append(response.Logs, models.ExecutionSnapshot{
			ExecutionID: id,
			Status:      doc.Status,
			Events:      events,
		})
	}

	writeJSON(w, http.StatusOK, response)
}

// handleExecute runs a strategy synchronously and returns the summary. The
// wrapped logic's errors never surface as HTTP errors; they arrive in the
// result body.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req runtime.ExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.ExecutionID == "" {
		http.Error(w, "execution_id is required", http.StatusBadRequest)
		return
	}
	if req.Strategy.Code == "" {
		http.Error(w, "strategy code is required", http.StatusBadRequest)
		return
	}

	result := s.controller.Execute(r.Context(), req)
	writeJSON(w, http.StatusOK, result)
}

// handleListActions returns the persisted action records for a subscription
func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	subscriptionID := mux.Vars(r)["id"]

	actions, err := s.actions.ListActions(r.Context(), subscriptionID)
	if err != nil {
		http.Error(w, "Failed to list actions", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"actions": actions})
}

// handleLogin exchanges the operator secret for a JWT
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
		Secret  string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if s.config.Auth.OperatorSecret == "" || req.Secret != s.config.Auth.OperatorSecret {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if req.Subject == "" {
		req.Subject = "operator"
	}

	token, err := s.tokens.GenerateToken(req.Subject)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
