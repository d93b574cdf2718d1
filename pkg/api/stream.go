package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/adambraimbridge/webchat/pkg/eventlog"
	"github.com/adambraimbridge/webchat/pkg/logger"
	"github.com/adambraimbridge/webchat/pkg/utils"
)

// stream upgrades the request to a websocket and subscribes it to the
// session's live event feed.
func (h *sessionHandlers) stream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := eventlog.GetSession(id); err != nil {
		if eventlog.IsNotFound(err) {
			utils.JSONError(w, http.StatusNotFound, "unknown session")
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, a := range h.deps.AllowedOrigins {
				if a == "*" || strings.EqualFold(a, origin) {
					return true
				}
			}
			return false
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("stream_upgrade_failed", "session", id, "error", err.Error())
		return
	}
	logger.Info("stream_subscribed", "session", id, "remote", r.RemoteAddr)
	h.deps.Hub.Subscribe(id, conn)
}
