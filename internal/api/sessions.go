package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shipchat/shipchat/internal/chat"
	"github.com/shipchat/shipchat/internal/llm"
)

type createSessionRequest struct {
	Model          string `json:"model"`
	MaxReflections *int   `json:"max_reflections"`
	SummaryContext string `json:"summary_context"`
}

type postMessageRequest struct {
	Text string `json:"text"`
}

func handleCreateSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Registry == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session registry is not configured", false, nil)
		return
	}

	var req createSessionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid session request body", false, map[string]any{"details": err.Error()})
		return
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = deps.DefaultModel
	}
	if !llm.IsSupportedModel(model) {
		writeError(r.Context(), w, http.StatusBadRequest, "MODEL_NOT_SUPPORTED", "model is not supported", false, map[string]any{
			"model":     model,
			"supported": llm.SupportedModels,
		})
		return
	}

	maxReflections := deps.MaxReflections
	if req.MaxReflections != nil {
		maxReflections = *req.MaxReflections
	}
	if maxReflections < 0 || maxReflections > 10 {
		writeError(r.Context(), w, http.StatusBadRequest, "REFLECTIONS_OUT_OF_RANGE", "max_reflections must be between 0 and 10", false, nil)
		return
	}

	summaryContext := req.SummaryContext
	if summaryContext == "" {
		summaryContext = deps.SummaryContext
	}

	session := deps.Registry.Create(chat.SessionOptions{
		Model:          model,
		MaxReflections: maxReflections,
		SummaryContext: summaryContext,
	})

	writeJSON(w, http.StatusCreated, sessionPayload(session))
}

func handleGetSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromRequest(deps, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(session))
}

func handleDeleteSession(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromRequest(deps, w, r)
	if !ok {
		return
	}
	deps.Registry.Delete(session.ID)
	w.WriteHeader(http.StatusNoContent)
}

func handleListMessages(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromRequest(deps, w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": session.ID,
		"messages":   session.Messages(),
	})
}

func handlePostMessage(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Turns == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat service is not configured", false, nil)
		return
	}
	session, ok := sessionFromRequest(deps, w, r)
	if !ok {
		return
	}

	var req postMessageRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid message request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "TEXT_REQUIRED", "text is required", false, nil)
		return
	}

	result, err := deps.Turns.HandleTurn(r.Context(), session, req.Text)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "COMPLETION_UNAVAILABLE", chat.UserFacingTransportMessage(err), true, nil)
		return
	}

	payload := map[string]any{
		"session_id":  session.ID,
		"kind":        turnKindLabel(result.Kind),
		"reply":       result.Reply,
		"reflections": result.Reflections,
	}
	if result.SQL != "" {
		payload["sql"] = result.SQL
	}
	if result.Kind == chat.TurnData {
		payload["columns"] = result.Data.Columns
		payload["rows"] = result.Data.Rows
	}
	writeJSON(w, http.StatusOK, payload)
}

func sessionFromRequest(deps Dependencies, w http.ResponseWriter, r *http.Request) (*chat.Session, bool) {
	if deps.Registry == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session registry is not configured", false, nil)
		return nil, false
	}
	id := r.PathValue("session")
	session, err := deps.Registry.Get(id)
	if err != nil {
		writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", err.Error(), false, nil)
		return nil, false
	}
	return session, true
}

func sessionPayload(session *chat.Session) map[string]any {
	return map[string]any{
		"session_id":      session.ID,
		"created_at":      session.CreatedAt,
		"model":           session.Model,
		"max_reflections": session.MaxReflections,
		"authenticated":   session.Authenticated(),
		"user":            session.User(),
		"greeting":        chat.Greeting,
	}
}

func turnKindLabel(kind chat.TurnKind) string {
	switch kind {
	case chat.TurnData:
		return "data"
	case chat.TurnExplanation:
		return "explanation"
	case chat.TurnExhausted:
		return "exhausted"
	case chat.TurnLogin:
		return "login"
	default:
		return "unknown"
	}
}
