package playground

import (
	"encoding/json"
	"errors"
	"net/http"

	"finagent/internal/agent"
	"finagent/internal/dispatch"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type agentDescriptor struct {
	AgentID      string   `json:"agent_id"`
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Model        string   `json:"model"`
	Tools        []string `json:"tools"`
	Instructions []string `json:"instructions"`
	Markdown     bool     `json:"markdown"`
}

type runRequest struct {
	Message   string `json:"message"`
	Stream    bool   `json:"stream"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"playground": "available"})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents := s.backend().Agents
	out := make([]agentDescriptor, len(agents))
	for i, a := range agents {
		out[i] = agentDescriptor{
			AgentID:      a.ID(),
			Name:         a.Name(),
			Role:         a.Role(),
			Model:        a.Binding().ModelID,
			Tools:        a.ToolNames(),
			Instructions: a.Instructions(),
			Markdown:     a.Format() == agent.FormatMarkdown,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	b := s.backend()
	agentID := mux.Vars(r)["agent_id"]
	if !b.Dispatcher.Has(agentID) {
		writeError(w, http.StatusNotFound, "agent not found: "+agentID)
		return
	}

	var req runRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	ctx := agent.ContextWithSessionID(r.Context(), req.SessionID)

	if req.Stream {
		s.streamRun(w, r.WithContext(ctx), b, agentID, req)
		return
	}

	var run *agent.RunResponse
	content, err := b.Dispatcher.DispatchStream(ctx, agentID, req.Message, func(ev agent.Event) {
		if ev.Type == agent.EventDone {
			run, _ = ev.Data.(*agent.RunResponse)
		}
	})
	if err != nil {
		writeDispatchError(w, err)
		return
	}
	if run == nil {
		writeJSON(w, http.StatusOK, map[string]string{"session_id": req.SessionID, "content": content})
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) streamRun(w http.ResponseWriter, r *http.Request, b *Backend, agentID string, req runRequest) {
	sse := NewSSEWriter(w)
	var sentError bool

	_, err := b.Dispatcher.DispatchStream(r.Context(), agentID, req.Message, func(ev agent.Event) {
		switch ev.Type {
		case agent.EventToken:
			sse.Send("token", map[string]any{"content": ev.Data})
		case agent.EventToolCall:
			sse.Send("tool_call", ev.Data)
		case agent.EventToolResult:
			sse.Send("tool_result", ev.Data)
		case agent.EventError:
			sentError = true
			sse.Send("error", map[string]any{"error": ev.Data})
		case agent.EventDone:
			sse.Send("done", ev.Data)
		}
	})

	if err != nil && !sentError {
		sse.Send("error", map[string]string{"error": userMessage(err)})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeDispatchError(w http.ResponseWriter, err error) {
	var ve *dispatch.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ve.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, userMessage(err))
}

func userMessage(err error) string {
	var de *dispatch.DispatchError
	if errors.As(err, &de) {
		return de.UserMessage()
	}
	var ve *dispatch.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return "An error occurred: " + err.Error()
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
