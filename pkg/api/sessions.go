// Package api exposes the webchat session HTTP endpoints.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/adambraimbridge/webchat/pkg/auth"
	"github.com/adambraimbridge/webchat/pkg/config"
	"github.com/adambraimbridge/webchat/pkg/eventlog"
	"github.com/adambraimbridge/webchat/pkg/hub"
	"github.com/adambraimbridge/webchat/pkg/logger"
	"github.com/adambraimbridge/webchat/pkg/models"
	"github.com/adambraimbridge/webchat/pkg/utils"
	"github.com/adambraimbridge/webchat/pkg/validation"
)

// Deps carries the collaborators the handlers need.
type Deps struct {
	Hub            *hub.Hub
	Widget         config.WidgetConfig
	MaxBodyBytes   int64
	AllowedOrigins []string
}

type sessionHandlers struct {
	deps Deps
}

// RegisterSessions registers the session endpoints on the /v1 router.
func RegisterSessions(r *mux.Router, deps Deps) {
	h := &sessionHandlers{deps: deps}

	r.HandleFunc("/sessions", h.createSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions", h.listSessions).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/init", h.initSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/catchup", h.catchup).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/messages", h.sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/messages/{mid}", h.editMessage).Methods(http.MethodPut)
	r.HandleFunc("/sessions/{id}/messages/{mid}", h.deleteMessage).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{id}/messages/{mid}/block", h.blockMessage).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/start", h.startSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/end", h.endSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/stream", h.stream).Methods(http.MethodGet)
}

// messageBody is the request body for send and edit.
type messageBody struct {
	MessageID  string `json:"messageId,omitempty"`
	Message    string `json:"message"`
	KeyText    string `json:"keytext,omitempty"`
	Blockquote bool   `json:"blockquote,omitempty"`
}

func (h *sessionHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	if !auth.IsEditor(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	var snap models.SessionSnapshot
	if r.Body != nil {
		// body is optional; widget defaults fill the gaps
		_ = json.NewDecoder(r.Body).Decode(&snap)
	}
	if snap.SessionID == "" {
		snap.SessionID = utils.GenSessionID()
	}
	snap.Status = models.StatusPending
	if !snap.ContentOrder.Valid() {
		snap.ContentOrder = models.DisplayOrder(h.deps.Widget.ContentOrder)
		if !snap.ContentOrder.Valid() {
			snap.ContentOrder = models.OrderReverseChronological
		}
	}
	if snap.ConnectionNotification == "" {
		snap.ConnectionNotification = h.deps.Widget.ConnectionNotification
	}
	if snap.AuthorNameStyle == "" {
		snap.AuthorNameStyle = h.deps.Widget.AuthorNameStyle
	}
	if !snap.FixedHeight {
		snap.FixedHeight = h.deps.Widget.FixedHeight
	}
	snap.AllowEditAndDelete = snap.AllowEditAndDelete || h.deps.Widget.AllowEditAndDelete
	snap.InsertKeyText = snap.InsertKeyText || h.deps.Widget.InsertKeyText
	snap.Time = time.Now().UnixMilli()
	if err := eventlog.SaveSession(snap); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("session_created", "session", snap.SessionID)
	utils.Success(w, snap)
}

func (h *sessionHandlers) listSessions(w http.ResponseWriter, r *http.Request) {
	if !auth.IsEditor(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	snaps, err := eventlog.ListSessions()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.Success(w, snaps)
}

func (h *sessionHandlers) initSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap, err := eventlog.GetSession(id)
	if err != nil {
		if eventlog.IsNotFound(err) {
			utils.Failure(w, "unknown session")
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// per-caller view of the shared snapshot
	snap.IsEditor = auth.IsEditor(r)
	snap.IsParticipant = auth.ResolveAuthor(r) != "" || snap.IsEditor
	if snap.Channel == "" {
		snap.Channel = "/v1/sessions/" + id + "/stream"
	}
	utils.Success(w, snap)
}

func (h *sessionHandlers) catchup(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := eventlog.GetSession(id); err != nil {
		if eventlog.IsNotFound(err) {
			utils.Failure(w, "unknown session")
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	reverse := r.URL.Query().Get("direction") == "reversechronological"
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	events, err := eventlog.ListEvents(id, reverse, limit)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Debug("catchup_served", "session", id, "events", len(events), "reverse", reverse)
	utils.Success(w, events)
}

// loadOpenSession fetches a session and rejects the request when it is
// missing or already closed. A nil snapshot means the response was written.
func (h *sessionHandlers) loadOpenSession(w http.ResponseWriter, id string) *models.SessionSnapshot {
	snap, err := eventlog.GetSession(id)
	if err != nil {
		if eventlog.IsNotFound(err) {
			utils.Failure(w, "unknown session")
			return nil
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	if snap.Status == models.StatusClosed {
		utils.Failure(w, "session is closed")
		return nil
	}
	return &snap
}

// messageOwner resolves a stored message's author from the session log.
// The first content event for the id fixes ownership; edits cannot
// reassign it.
func messageOwner(sessionID, mid string) (string, bool) {
	events, err := eventlog.ListEvents(sessionID, false, 0)
	if err != nil {
		return "", false
	}
	for _, evt := range events {
		if evt.Kind != models.EventMessage {
			continue
		}
		p, err := evt.MessageEvent()
		if err != nil || p.MessageID != mid {
			continue
		}
		return p.Author, true
	}
	return "", false
}

// requireOwner rejects participants acting on messages they did not
// author. Editors may act on any message. A false return means the
// response was written.
func requireOwner(w http.ResponseWriter, r *http.Request, sessionID, mid string) bool {
	if auth.IsEditor(r) {
		return true
	}
	author := auth.ResolveAuthor(r)
	if author == "" {
		utils.Failure(w, "author required")
		return false
	}
	owner, found := messageOwner(sessionID, mid)
	if !found {
		utils.Failure(w, "unknown message")
		return false
	}
	if owner != author {
		utils.Failure(w, "message belongs to another author")
		return false
	}
	return true
}

func (h *sessionHandlers) appendAndBroadcast(w http.ResponseWriter, sessionID string, evt models.Event, data interface{}) {
	if err := eventlog.AppendEvent(sessionID, evt); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.deps.Hub.Broadcast(sessionID, evt)
	utils.Success(w, data)
}

func (h *sessionHandlers) sendMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if h.loadOpenSession(w, id) == nil {
		return
	}
	author := auth.ResolveAuthor(r)
	if author == "" {
		utils.Failure(w, "author required")
		return
	}
	body, ok := h.decodeMessageBody(w, r)
	if !ok {
		return
	}
	html := body.Message
	if body.Blockquote {
		html = "<blockquote>" + html + "</blockquote>"
	}
	payload := models.MessagePayload{
		MessageID:    utils.GenMessageID(),
		HTML:         html,
		DateModified: time.Now().UnixMilli(),
		Author:       author,
		KeyText:      body.KeyText,
	}
	if err := validation.ValidateMessage(payload); err != nil {
		utils.Failure(w, err.Error())
		return
	}
	evt, err := models.NewEvent(models.EventMessage, payload)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("message_sent", "session", id, "mid", payload.MessageID, "author", author)
	h.appendAndBroadcast(w, id, evt, payload)
}

func (h *sessionHandlers) editMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	mid := mux.Vars(r)["mid"]
	if h.loadOpenSession(w, id) == nil {
		return
	}
	author := auth.ResolveAuthor(r)
	if author == "" {
		utils.Failure(w, "author required")
		return
	}
	if !requireOwner(w, r, id, mid) {
		return
	}
	body, ok := h.decodeMessageBody(w, r)
	if !ok {
		return
	}
	payload := models.MessagePayload{
		MessageID:    mid,
		HTML:         body.Message,
		DateModified: time.Now().UnixMilli(),
		Author:       author,
		KeyText:      body.KeyText,
	}
	if err := validation.ValidateMessage(payload); err != nil {
		utils.Failure(w, err.Error())
		return
	}
	evt, err := models.NewEvent(models.EventEditMessage, payload)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("message_edited", "session", id, "mid", mid, "author", author)
	h.appendAndBroadcast(w, id, evt, payload)
}

func (h *sessionHandlers) deleteMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	mid := mux.Vars(r)["mid"]
	if h.loadOpenSession(w, id) == nil {
		return
	}
	if !requireOwner(w, r, id, mid) {
		return
	}
	payload := models.DeletePayload{
		MessageID:    mid,
		DateModified: time.Now().UnixMilli(),
	}
	evt, err := models.NewEvent(models.EventDelete, payload)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("message_deleted", "session", id, "mid", mid)
	h.appendAndBroadcast(w, id, evt, nil)
}

func (h *sessionHandlers) blockMessage(w http.ResponseWriter, r *http.Request) {
	if !auth.IsEditor(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	id := mux.Vars(r)["id"]
	mid := mux.Vars(r)["mid"]
	if h.loadOpenSession(w, id) == nil {
		return
	}
	by := auth.ResolveAuthor(r)
	if by == "" {
		by = "editor"
	}
	payload := models.BlockPayload{MessageID: mid, BlockedBy: by}
	evt, err := models.NewEvent(models.EventBlock, payload)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("message_blocked", "session", id, "mid", mid, "by", by)
	h.appendAndBroadcast(w, id, evt, nil)
}

func (h *sessionHandlers) startSession(w http.ResponseWriter, r *http.Request) {
	if !auth.IsEditor(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	id := mux.Vars(r)["id"]
	snap, err := eventlog.GetSession(id)
	if err != nil {
		if eventlog.IsNotFound(err) {
			utils.Failure(w, "unknown session")
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snap.Status != models.StatusPending {
		utils.Failure(w, "session already started")
		return
	}
	snap.Status = models.StatusActive
	if err := eventlog.SaveSession(snap); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	evt, err := models.NewEvent(models.EventStartSession, nil)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("session_started", "session", id)
	h.appendAndBroadcast(w, id, evt, nil)
}

func (h *sessionHandlers) endSession(w http.ResponseWriter, r *http.Request) {
	if !auth.IsEditor(r) {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}
	id := mux.Vars(r)["id"]
	snap, err := eventlog.GetSession(id)
	if err != nil {
		if eventlog.IsNotFound(err) {
			utils.Failure(w, "unknown session")
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snap.Status == models.StatusClosed {
		utils.Failure(w, "session already closed")
		return
	}
	snap.Status = models.StatusClosed
	snap.Time = time.Now().UnixMilli()
	if err := eventlog.SaveSession(snap); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	evt, err := models.NewEvent(models.EventEndSession, nil)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("session_ended", "session", id)
	h.appendAndBroadcast(w, id, evt, nil)
}

func (h *sessionHandlers) decodeMessageBody(w http.ResponseWriter, r *http.Request) (messageBody, bool) {
	var body messageBody
	limit := h.deps.MaxBodyBytes
	if limit <= 0 {
		limit = 64 * 1024
	}
	rd := http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(rd).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return body, false
	}
	return body, true
}
