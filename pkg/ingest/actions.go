package ingest

import (
	"context"

	"github.com/adambraimbridge/webchat/pkg/logger"
	"github.com/adambraimbridge/webchat/pkg/models"
	"github.com/adambraimbridge/webchat/pkg/telemetry"
)

// Authoring and moderation actions. Each calls the session API once and
// reports success. Network failures and backend rejections both surface
// a one-shot alert; neither touches reconciled state. The store only
// changes when the backend broadcasts the resulting event.

// SendMessage posts a new message. On success the surface follows to
// the live edge so the reader sees their own message land.
func (s *Synchronizer) SendMessage(ctx context.Context, data MessageData) bool {
	res, err := s.cfg.API.SendMessage(ctx, data)
	if !s.actionOK("send", res, err) {
		return false
	}
	s.cfg.Surface.ScrollToLiveEdge()
	return true
}

// EditMessage submits an edit for an existing message.
func (s *Synchronizer) EditMessage(ctx context.Context, data MessageData) bool {
	res, err := s.cfg.API.EditMessage(ctx, data)
	return s.actionOK("edit", res, err)
}

// DeleteMessage requests removal of a message. The record disappears
// when the deletion event comes back on the channel; until then only an
// in-progress marker shows, and it is reverted on failure.
func (s *Synchronizer) DeleteMessage(ctx context.Context, messageID string) bool {
	s.cfg.Surface.MarkPending(messageID, true)
	res, err := s.cfg.API.DeleteMessage(ctx, messageID)
	if !s.actionOK("delete", res, err) {
		s.cfg.Surface.MarkPending(messageID, false)
		return false
	}
	return true
}

// BlockMessage requests moderation-blocking of a message. On success
// the raw text is handed back to the editor so the author can rework
// it, matching the moderation workflow.
func (s *Synchronizer) BlockMessage(ctx context.Context, messageID string) bool {
	res, err := s.cfg.API.BlockMessage(ctx, messageID)
	if !s.actionOK("block", res, err) {
		return false
	}
	if m, ok := s.msgs.Find(messageID); ok {
		s.cfg.Editor.PopulateMessageField(m.HTML)
	}
	return true
}

// StartSession asks the backend to start a pending session. The state
// transition itself arrives as a startSession event on the channel.
func (s *Synchronizer) StartSession(ctx context.Context) bool {
	res, err := s.cfg.API.StartSession(ctx)
	return s.actionOK("start_session", res, err)
}

// EndSession asks the backend to end the session.
func (s *Synchronizer) EndSession(ctx context.Context) bool {
	res, err := s.cfg.API.EndSession(ctx)
	return s.actionOK("end_session", res, err)
}

func (s *Synchronizer) actionOK(action string, res models.ActionResult, err error) bool {
	switch {
	case err != nil:
		telemetry.IncActionFailure(action)
		logger.Error("action_request_failed", "action", action, "error", err)
		s.cfg.Alerter.Alert("An error occurred.")
		return false
	case !res.Success:
		telemetry.IncActionFailure(action)
		logger.Warn("action_rejected", "action", action, "reason", res.Reason)
		reason := res.Reason
		if reason == "" {
			reason = "Action failed, unknown reason."
		}
		s.cfg.Alerter.Alert(reason)
		return false
	}
	return true
}
