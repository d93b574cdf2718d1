// Package session tracks the lifecycle and presentation settings of a
// single live-discussion session. The state value is owned by the
// synchronizer; collaborators read it, nothing else writes it.
package session

import (
	"github.com/adambraimbridge/webchat/pkg/logger"
	"github.com/adambraimbridge/webchat/pkg/models"
)

// State is the session state machine: pending -> inprogress -> closed,
// with closed terminal. Invalid or duplicate transitions are no-ops.
type State struct {
	status           models.SessionStatus
	order            models.DisplayOrder
	editingEnabled   bool
	highlightEnabled bool
	isParticipant    bool
	isModerator      bool
}

// FromSnapshot builds the state from a session initialization snapshot.
// Sessions can already be in progress (or closed) by the time the widget
// loads, so the initial status is whatever the snapshot says.
func FromSnapshot(snap models.SessionSnapshot) *State {
	status := snap.Status
	if !status.Valid() {
		status = models.StatusPending
	}
	order := snap.ContentOrder
	if order != models.OrderChronological && order != models.OrderReverseChronological {
		order = models.OrderReverseChronological
	}
	return &State{
		status:           status,
		order:            order,
		editingEnabled:   snap.AllowEditAndDelete && snap.IsEditor,
		highlightEnabled: snap.InsertKeyText,
		isParticipant:    snap.IsParticipant,
		isModerator:      snap.IsEditor,
	}
}

// Status returns the current lifecycle status.
func (s *State) Status() models.SessionStatus { return s.status }

// Order returns the configured display order.
func (s *State) Order() models.DisplayOrder { return s.order }

// EditingEnabled reports whether participants may edit or delete
// previous messages.
func (s *State) EditingEnabled() bool { return s.editingEnabled }

// HighlightEnabled reports whether key-point highlights are collected.
func (s *State) HighlightEnabled() bool { return s.highlightEnabled }

// IsParticipant reports whether the reader may author messages.
func (s *State) IsParticipant() bool { return s.isParticipant }

// IsModerator reports whether the reader holds moderation rights.
func (s *State) IsModerator() bool { return s.isModerator }

// Active reports status == inprogress.
func (s *State) Active() bool { return s.status == models.StatusActive }

// Closed reports status == closed.
func (s *State) Closed() bool { return s.status == models.StatusClosed }

// Start moves pending to inprogress. Returns false (and changes
// nothing) for any other starting point, including a duplicate start.
func (s *State) Start() bool {
	if s.status != models.StatusPending {
		logger.Debug("session_start_ignored", "status", string(s.status))
		return false
	}
	s.status = models.StatusActive
	return true
}

// Close moves the session to closed from any non-terminal status. The
// session can end without ever having started (a moderator abandoning a
// pending session), so pending closes too. Returns false once closed.
func (s *State) Close() bool {
	if s.status == models.StatusClosed {
		logger.Debug("session_close_ignored", "status", string(s.status))
		return false
	}
	s.status = models.StatusClosed
	return true
}
