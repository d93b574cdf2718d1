// Package ingest orchestrates the historical-backfill-then-live handoff
// for a discussion session: it replays the catchup batch and the live
// channel through one dispatch path, keeping the message store, session
// state and rendering surface consistent under reconnects, out-of-order
// delivery, edits and moderation.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adambraimbridge/webchat/pkg/logger"
	"github.com/adambraimbridge/webchat/pkg/models"
	"github.com/adambraimbridge/webchat/pkg/scroll"
	"github.com/adambraimbridge/webchat/pkg/session"
	"github.com/adambraimbridge/webchat/pkg/store"
	"github.com/adambraimbridge/webchat/pkg/telemetry"
)

// Synthetic notice ids. Fixed so a repeat (reconnect notice replacing the
// connecting notice, duplicate session-end) replaces rather than appends.
const (
	connectNoticeID = "stream-connect"
	startedNoticeID = "webchat-msg-session-started"
	endedNoticeID   = "webchat-msg-session-ended"
)

// Config wires the synchronizer's collaborators. All fields are
// required except Permalink.
type Config struct {
	API     SessionAPI
	Dialer  ChannelDialer
	Surface Surface
	Header  Header
	Roster  Roster
	Editor  Editor
	Alerter Alerter
	// Permalink is the stable URL referenced by the session-ended
	// notice, if the host page has one.
	Permalink string
}

// Synchronizer ingests the backfill batch and the live channel and is
// the only writer of the message store and session state. All mutation
// happens on the goroutine running Run; the store's last-writer-wins
// rule handles out-of-order arrival, so no locks guard the state.
type Synchronizer struct {
	cfg   Config
	snap  models.SessionSnapshot
	state *session.State
	msgs  *store.MessageStore

	channel  Channel
	stopOnce sync.Once
}

// New builds a synchronizer. Run does all the work.
func New(cfg Config) (*Synchronizer, error) {
	switch {
	case cfg.API == nil:
		return nil, fmt.Errorf("ingest: SessionAPI is required")
	case cfg.Dialer == nil:
		return nil, fmt.Errorf("ingest: ChannelDialer is required")
	case cfg.Surface == nil:
		return nil, fmt.Errorf("ingest: Surface is required")
	case cfg.Header == nil:
		return nil, fmt.Errorf("ingest: Header is required")
	case cfg.Roster == nil:
		return nil, fmt.Errorf("ingest: Roster is required")
	case cfg.Editor == nil:
		return nil, fmt.Errorf("ingest: Editor is required")
	case cfg.Alerter == nil:
		return nil, fmt.Errorf("ingest: Alerter is required")
	}
	return &Synchronizer{cfg: cfg}, nil
}

// Store exposes the reconciled message store for readers (rendering,
// tests). Callers must not mutate through it concurrently with Run.
func (s *Synchronizer) Store() *store.MessageStore { return s.msgs }

// State exposes the session state for readers.
func (s *Synchronizer) State() *session.State { return s.state }

// Snapshot returns the session initialization snapshot.
func (s *Synchronizer) Snapshot() models.SessionSnapshot { return s.snap }

// Run executes the synchronization protocol: initialize, backfill, open
// the live channel, then dispatch live events until the session closes,
// the channel drops, or ctx is cancelled. Initialization and backfill
// failures are fatal and surfaced once; there is no retry.
func (s *Synchronizer) Run(ctx context.Context) error {
	snap, err := s.cfg.API.Init(ctx)
	if err != nil {
		s.cfg.Alerter.Alert("An error occurred.")
		return fmt.Errorf("session init failed: %w", err)
	}
	s.snap = snap
	s.state = session.FromSnapshot(snap)
	s.msgs = store.New(s.state.Order())
	s.cfg.Header.SetLozenge(s.state.Status())
	for _, p := range snap.Participants {
		s.cfg.Roster.AddParticipant(p)
	}
	logger.Info("session_initialized",
		"session", snap.SessionID,
		"status", string(s.state.Status()),
		"order", string(s.state.Order()),
		"participants", len(snap.Participants))

	events, err := s.cfg.API.Catchup(ctx, s.state.Order())
	if err != nil {
		s.cfg.Alerter.Alert("An error occurred.")
		return fmt.Errorf("catchup failed: %w", err)
	}
	telemetry.ObserveBackfill(len(events))
	for _, evt := range events {
		s.dispatch(evt, true)
	}
	// Autoscroll is deferred to the end of the replay batch.
	s.cfg.Surface.ScrollToLiveEdge()
	logger.Info("backfill_replayed", "events", len(events), "messages", s.msgs.Len())

	if s.state.Closed() {
		return nil
	}

	ch, err := s.cfg.Dialer.Dial(ctx, snap.Channel)
	if err != nil {
		s.cfg.Alerter.Alert("An error occurred.")
		return fmt.Errorf("live channel open failed: %w", err)
	}
	s.channel = ch
	s.postSystemNotice(connectNoticeID, "Connecting to the stream &hellip;")

	connected := ch.Connected()
	for {
		select {
		case <-ctx.Done():
			s.stopChannel()
			return ctx.Err()
		case <-connected:
			connected = nil
			notif := snap.ConnectionNotification
			if notif == "" {
				notif = "You are now connected."
			}
			s.postSystemNotice(connectNoticeID, notif)
		case evt, ok := <-ch.Events():
			if !ok {
				logger.Info("live_channel_closed", "session", snap.SessionID)
				return nil
			}
			s.dispatch(evt, false)
			if s.state.Closed() {
				s.stopChannel()
				return nil
			}
		}
	}
}

// Stop tears the live channel down. Safe to call any number of times,
// from any goroutine, including concurrently with Run.
func (s *Synchronizer) Stop() { s.stopChannel() }

func (s *Synchronizer) stopChannel() {
	s.stopOnce.Do(func() {
		if s.channel != nil {
			s.channel.Stop()
		}
	})
}

// dispatch routes one event. replay marks backfill events: moderation
// affordances are suppressed and per-event autoscroll is skipped.
// Replay always applies, so a session that was already closed at init
// still renders its full history; the closed check makes only the live
// path inert once the session ends, even if in-flight frames arrive
// after stop.
func (s *Synchronizer) dispatch(evt models.Event, replay bool) {
	if !replay && s.state.Closed() {
		logger.Debug("event_after_close_dropped", "kind", evt.Kind)
		return
	}
	telemetry.IncEventDispatched(evt.Kind)

	switch evt.Kind {
	case models.EventMessage, models.EventEditMessage:
		s.applyContent(evt, replay)
	case models.EventDelete:
		s.applyDelete(evt)
	case models.EventBlock:
		s.applyBlock(evt)
	case models.EventPostSaved:
		p, err := evt.PostSavedEvent()
		if err != nil {
			s.dropMalformed(evt, err)
			return
		}
		s.cfg.Header.SetTitle(p.Title)
		s.cfg.Header.SetExcerpt(p.Excerpt)
	case models.EventStartSession:
		s.applyStart()
	case models.EventEndSession:
		s.applyEnd()
	default:
		s.dropMalformed(evt, fmt.Errorf("unrecognized event kind"))
	}
}

func (s *Synchronizer) applyContent(evt models.Event, replay bool) {
	p, err := evt.MessageEvent()
	if err != nil {
		s.dropMalformed(evt, err)
		return
	}
	if p.Author != "" && !s.cfg.Roster.Contains(p.Author) {
		s.cfg.Roster.AddParticipant(models.Participant{
			ID:          p.Author,
			DisplayName: p.AuthorName,
			Initials:    p.Author,
			Color:       p.AuthorColor,
		})
	}

	latch := scroll.Capture(s.cfg.Surface.ScrollPosition(), s.state.Order())

	m := models.Message{
		ID:           p.MessageID,
		HTML:         p.HTML,
		DateModified: p.DateModified,
		Author:       p.Author,
		KeyText:      p.KeyText,
	}
	outcome := s.msgs.Upsert(m)
	if outcome == store.Stale {
		telemetry.IncStaleDrop()
		logger.Debug("stale_content_discarded", "mid", p.MessageID, "datemodified", p.DateModified)
		return
	}

	s.cfg.Surface.UpsertMessage(m, RenderOptions{
		Blockable: !replay && s.state.IsParticipant(),
		Replaced:  outcome == store.Updated,
	})
	if s.state.HighlightEnabled() && p.KeyText != "" {
		s.cfg.Header.AddKeyPoint(p.MessageID, p.KeyText)
	}
	if !replay && latch.ShouldFollow(false) {
		s.cfg.Surface.ScrollToLiveEdge()
	}
}

func (s *Synchronizer) applyDelete(evt models.Event) {
	p, err := evt.DeleteEvent()
	if err != nil {
		s.dropMalformed(evt, err)
		return
	}
	if s.msgs.Remove(p.MessageID, p.DateModified) {
		s.cfg.Surface.RemoveMessage(p.MessageID)
	}
	if s.state.HighlightEnabled() {
		s.cfg.Header.RemoveKeyPoint(p.MessageID)
	}
}

func (s *Synchronizer) applyBlock(evt models.Event) {
	p, err := evt.BlockEvent()
	if err != nil {
		s.dropMalformed(evt, err)
		return
	}
	if s.msgs.MarkBlocked(p.MessageID, p.BlockedBy) {
		s.cfg.Surface.BlockMessage(p.MessageID, p.BlockedBy)
	}
}

func (s *Synchronizer) applyStart() {
	if !s.state.Start() {
		return
	}
	logger.Info("session_started", "session", s.snap.SessionID)
	s.cfg.Header.SetLozenge(s.state.Status())
	s.postSystemNotice(startedNoticeID, "This session is now in progress.")
	s.cfg.Editor.SessionStarted()
}

func (s *Synchronizer) applyEnd() {
	if !s.state.Close() {
		return
	}
	logger.Info("session_ended", "session", s.snap.SessionID)
	s.stopChannel()

	html := "This session has now closed."
	if s.cfg.Permalink != "" {
		html = fmt.Sprintf(`This session has now closed, and <a href="%s">is available here</a>.`, s.cfg.Permalink)
	}
	s.postSystemNotice(endedNoticeID, html)
	s.cfg.Editor.SessionEnded()
	s.cfg.Header.SetLozenge(s.state.Status())
	s.cfg.Surface.FreezeHeight()
}

// postSystemNotice inserts (or replaces) a synthetic notice and always
// follows it to the live edge.
func (s *Synchronizer) postSystemNotice(id, html string) {
	m := models.Message{
		ID:           id,
		HTML:         html,
		DateModified: time.Now().UnixMilli(),
		System:       true,
	}
	outcome := s.msgs.Upsert(m)
	if outcome == store.Stale {
		return
	}
	s.cfg.Surface.UpsertMessage(m, RenderOptions{Replaced: outcome == store.Updated})
	s.cfg.Surface.ScrollToLiveEdge()
}

func (s *Synchronizer) dropMalformed(evt models.Event, err error) {
	telemetry.IncMalformedDrop()
	logger.Warn("event_dropped", "kind", evt.Kind, "error", err)
}
