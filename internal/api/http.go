// Package api is the external HTTP/WS surface. Ground: the route
// registration and hand-rolled JSON style of
// cmd/cliairmonitor/main.go's mux.HandleFunc block, upgraded from
// fmt.Fprintf string-building to encoding/json (the teacher's choice
// for hand-built dashboards doesn't fit a request/response surface
// this wide, but the flat net/http.ServeMux routing style is kept
// verbatim).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hivemindhq/hivemind/internal/engine"
	"github.com/hivemindhq/hivemind/internal/errs"
	"github.com/hivemindhq/hivemind/internal/extraction"
	"github.com/hivemindhq/hivemind/internal/logging"
	"github.com/hivemindhq/hivemind/internal/search"
	"github.com/hivemindhq/hivemind/internal/store"
	"github.com/hivemindhq/hivemind/internal/tasks"
	"github.com/hivemindhq/hivemind/internal/types"
)

var log = logging.WithComponent("API")

// Server binds an Engine to a net/http.ServeMux.
type Server struct {
	eng *engine.Engine
	mux *http.ServeMux
}

func NewServer(eng *engine.Engine) *Server {
	s := &Server{eng: eng, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/status", s.handleStatus)

	s.mux.HandleFunc("/api/memories", s.handleMemories)
	s.mux.HandleFunc("/api/memories/", s.handleMemoryByID)
	s.mux.HandleFunc("/api/search", s.handleSearch)
	s.mux.HandleFunc("/api/extract", s.handleExtract)

	s.mux.HandleFunc("/api/entities", s.handleEntities)
	s.mux.HandleFunc("/api/entities/", s.handleEntityByID)
	s.mux.HandleFunc("/api/relationships", s.handleRelationships)
	s.mux.HandleFunc("/api/graph/traverse", s.handleTraverse)

	s.mux.HandleFunc("/api/agents", s.handleAgents)
	s.mux.HandleFunc("/api/agents/heartbeat", s.handleHeartbeat)

	s.mux.HandleFunc("/api/tasks", s.handleTasks)
	s.mux.HandleFunc("/api/tasks/", s.handleTaskByID)

	s.mux.HandleFunc("/ws", s.handleWebSocket)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Errorf("failed to encode JSON response: %v", err)
		}
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, errs.ErrWrongState):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrMalformedRequest):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrProviderUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Stats())
}

// --- Memories -----------------------------------------------------------

func (s *Server) handleMemories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter := store.ListFilter{
			AgentID: r.URL.Query().Get("agent_id"),
			UserID:  r.URL.Query().Get("user_id"),
		}
		writeJSON(w, http.StatusOK, s.eng.ListMemories(filter))
	case http.MethodPost:
		var req engine.AddMemoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, errs.ErrMalformedRequest)
			return
		}
		mem, err := s.eng.AddMemory(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, mem)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleMemoryByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/memories/")
	historyRequested := strings.HasSuffix(path, "/history")
	path = strings.TrimSuffix(path, "/history")

	id, err := strconv.ParseInt(strings.Trim(path, "/"), 10, 64)
	if err != nil {
		writeError(w, errs.ErrMalformedRequest)
		return
	}

	switch {
	case historyRequested && r.Method == http.MethodGet:
		hist, err := s.eng.GetMemoryHistory(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, hist)

	case r.Method == http.MethodGet:
		mem, err := s.eng.GetMemory(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, mem)

	case r.Method == http.MethodPatch:
		var req engine.UpdateMemoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, errs.ErrMalformedRequest)
			return
		}
		mem, err := s.eng.UpdateMemory(r.Context(), id, req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, mem)

	case r.Method == http.MethodDelete:
		reason := r.URL.Query().Get("reason")
		changedBy := r.URL.Query().Get("changed_by")
		mem, err := s.eng.InvalidateMemory(id, reason, changedBy)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, mem)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := search.Query{
		Text:    r.URL.Query().Get("q"),
		AgentID: r.URL.Query().Get("agent_id"),
		UserID:  r.URL.Query().Get("user_id"),
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			q.Limit = limit
		}
	}
	if tags := r.URL.Query().Get("tags"); tags != "" {
		q.Tags = strings.Split(tags, ",")
	}
	writeJSON(w, http.StatusOK, s.eng.Search(q))
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		AgentID  string                `json:"agent_id"`
		Messages []extraction.Message `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.ErrMalformedRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	memories, err := s.eng.ExtractMemories(ctx, req.AgentID, req.Messages)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, memories)
}

// --- Entities & graph -----------------------------------------------------

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.eng.ListEntities())
	case http.MethodPost:
		var req struct {
			Name        string            `json:"name"`
			EntityType  string            `json:"entity_type"`
			Description string            `json:"description"`
			AgentID     string            `json:"agent_id"`
			Metadata    map[string]string `json:"metadata"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, errs.ErrMalformedRequest)
			return
		}
		entity, created := s.eng.AddEntity(req.Name, req.EntityType, req.Description, req.AgentID, req.Metadata)
		status := http.StatusCreated
		if !created {
			status = http.StatusOK
		}
		writeJSON(w, status, entity)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleEntityByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/entities/")
	relationshipsRequested := strings.HasSuffix(path, "/relationships")
	path = strings.TrimSuffix(path, "/relationships")

	id, err := strconv.ParseInt(strings.Trim(path, "/"), 10, 64)
	if err != nil {
		writeError(w, errs.ErrMalformedRequest)
		return
	}

	if relationshipsRequested {
		neighbors, err := s.eng.EntityRelationships(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, neighbors)
		return
	}

	entity, err := s.eng.GetEntity(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

func (s *Server) handleRelationships(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		SourceEntityID int64             `json:"source_entity_id"`
		TargetEntityID int64             `json:"target_entity_id"`
		RelationType   string            `json:"relation_type"`
		Description    string            `json:"description"`
		Weight         float64           `json:"weight"`
		CreatedBy      string            `json:"created_by"`
		Metadata       map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.ErrMalformedRequest)
		return
	}
	rel, err := s.eng.AddRelationship(req.SourceEntityID, req.TargetEntityID, req.RelationType, req.Description, req.Weight, req.CreatedBy, req.Metadata)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rel)
}

func (s *Server) handleTraverse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	startID, err := strconv.ParseInt(r.URL.Query().Get("start"), 10, 64)
	if err != nil {
		writeError(w, errs.ErrMalformedRequest)
		return
	}
	depth := 2
	if depthStr := r.URL.Query().Get("depth"); depthStr != "" {
		if d, err := strconv.Atoi(depthStr); err == nil {
			depth = d
		}
	}
	var relationTypes []string
	if rt := r.URL.Query().Get("relation_types"); rt != "" {
		relationTypes = strings.Split(rt, ",")
	}

	visited, err := s.eng.Traverse(startID, depth, relationTypes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, visited)
}

// --- Agents ---------------------------------------------------------------

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.eng.ListAgents())
	case http.MethodPost:
		var req struct {
			AgentID      string   `json:"agent_id"`
			Capabilities []string `json:"capabilities"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, errs.ErrMalformedRequest)
			return
		}
		writeJSON(w, http.StatusCreated, s.eng.RegisterAgent(req.AgentID, req.Capabilities))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	agentID := r.URL.Query().Get("agent_id")
	a, err := s.eng.Heartbeat(agentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// --- Tasks ------------------------------------------------------------

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter := tasks.ListFilter{AssignedAgent: r.URL.Query().Get("assigned_agent")}
		if status := r.URL.Query().Get("status"); status != "" {
			filter.Status = types.TaskStatus(status)
			filter.HasStatus = true
		}
		writeJSON(w, http.StatusOK, s.eng.ListTasks(filter))
	case http.MethodPost:
		var req tasks.CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, errs.ErrMalformedRequest)
			return
		}
		writeJSON(w, http.StatusCreated, s.eng.CreateTask(req))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleTaskByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, errs.ErrMalformedRequest)
		return
	}

	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	if action == "" && r.Method == http.MethodGet {
		task, err := s.eng.GetTask(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
		return
	}
	if action == "events" && r.Method == http.MethodGet {
		events, err := s.eng.GetTaskEvents(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, events)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		AgentID     string `json:"agent_id"`
		RequestedBy string `json:"requested_by"`
		Result      string `json:"result"`
		Reason      string `json:"reason"`
		Note        string `json:"note"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	var (
		task *types.Task
		opErr error
	)
	switch action {
	case "claim":
		task, opErr = s.eng.ClaimTask(id, body.AgentID)
	case "start":
		task, opErr = s.eng.StartTask(id, body.AgentID)
	case "progress":
		task, opErr = s.eng.ReportTaskProgress(id, body.AgentID, body.Note)
	case "complete":
		task, opErr = s.eng.CompleteTask(id, body.AgentID, body.Result)
	case "fail":
		task, opErr = s.eng.FailTask(id, body.AgentID, body.Reason)
	case "cancel":
		task, opErr = s.eng.CancelTask(id, body.RequestedBy, body.Reason)
	default:
		http.Error(w, "unknown task action", http.StatusNotFound)
		return
	}

	if opErr != nil {
		writeError(w, opErr)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
