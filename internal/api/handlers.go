package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/client-enricher/internal/model"
	"github.com/sells-group/client-enricher/internal/store"
)

const maxBodyBytes = 1 << 20

type enrichRequest struct {
	ClientID    string `json:"clientId"`
	Name        string `json:"name"`
	Website     string `json:"website"`
	Industry    string `json:"industry"`
	ForceUpdate bool   `json:"forceUpdate"`
}

type enrichResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type cancelRequest struct {
	ClientID string `json:"clientId"`
}

type cancelResponse struct {
	Success   bool   `json:"success"`
	Cancelled bool   `json:"cancelled"`
	Message   string `json:"message"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// startEnrichment handles POST /api/enrich. The run continues after the
// response is written.
func (s *Server) startEnrichment(w http.ResponseWriter, r *http.Request) {
	var req enrichRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	sess, err := s.enricher.Start(r.Context(), model.ClientInput{
		ID:       strings.TrimSpace(req.ClientID),
		Name:     strings.TrimSpace(req.Name),
		Website:  strings.TrimSpace(req.Website),
		Industry: strings.TrimSpace(req.Industry),
	}, req.ForceUpdate)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, enrichResponse{
		Success:   true,
		Message:   "Enrichment started",
		SessionID: sess.ID,
	})
}

// cancelEnrichment handles POST /api/enrich/cancel.
func (s *Server) cancelEnrichment(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" {
		badRequest(w, "clientId is required")
		return
	}

	cancelled, err := s.enricher.Cancel(r.Context(), clientID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	msg := "Cancellation requested"
	if !cancelled {
		msg = "No enrichment in progress"
	}
	writeJSON(w, http.StatusOK, cancelResponse{Success: true, Cancelled: cancelled, Message: msg})
}

// listClients handles GET /api/clients, newest first. Supports query
// parameters status, industry, limit and offset.
func (s *Server) listClients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ClientFilter{
		Status:   model.ClientStatus(q.Get("status")),
		Industry: q.Get("industry"),
	}
	var ok bool
	if filter.Limit, ok = queryInt(r, "limit"); !ok {
		badRequest(w, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, ok = queryInt(r, "offset"); !ok {
		badRequest(w, "offset must be a non-negative integer")
		return
	}

	clients, err := s.store.ListClients(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if clients == nil {
		clients = []model.ClientRecord{}
	}
	writeJSON(w, http.StatusOK, clients)
}

func (s *Server) getClient(w http.ResponseWriter, r *http.Request) {
	client, err := s.store.GetClient(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

// listSessions handles GET /api/clients/{clientID}/sessions, newest first.
// Supports query parameters status, limit and offset.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	filter := store.SessionFilter{
		ClientID: chi.URLParam(r, "clientID"),
		Status:   model.SessionStatus(r.URL.Query().Get("status")),
	}
	var ok bool
	if filter.Limit, ok = queryInt(r, "limit"); !ok {
		badRequest(w, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, ok = queryInt(r, "offset"); !ok {
		badRequest(w, "offset must be a non-negative integer")
		return
	}

	sessions, err := s.store.ListSessions(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func queryInt(r *http.Request, key string) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
