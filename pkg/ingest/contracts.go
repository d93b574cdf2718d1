package ingest

import (
	"context"

	"github.com/adambraimbridge/webchat/pkg/models"
	"github.com/adambraimbridge/webchat/pkg/scroll"
)

// SessionAPI is the remote session service the synchronizer drives. Each
// action result carries a success flag and, on failure, a human-readable
// reason for the alert surface.
type SessionAPI interface {
	Init(ctx context.Context) (models.SessionSnapshot, error)
	Catchup(ctx context.Context, direction models.DisplayOrder) ([]models.Event, error)
	SendMessage(ctx context.Context, data MessageData) (models.ActionResult, error)
	EditMessage(ctx context.Context, data MessageData) (models.ActionResult, error)
	DeleteMessage(ctx context.Context, messageID string) (models.ActionResult, error)
	BlockMessage(ctx context.Context, messageID string) (models.ActionResult, error)
	StartSession(ctx context.Context) (models.ActionResult, error)
	EndSession(ctx context.Context) (models.ActionResult, error)
}

// MessageData is the authoring payload for send and edit requests.
type MessageData struct {
	MessageID  string `json:"messageId,omitempty"`
	Message    string `json:"message"`
	KeyText    string `json:"keytext,omitempty"`
	Blockquote bool   `json:"blockquote,omitempty"`
}

// Channel is an open live event subscription. Events delivers the
// inbound queue in per-channel order and is closed when the channel
// stops; Connected is closed once when the connection is confirmed;
// Stop is idempotent and safe to call concurrently.
type Channel interface {
	Events() <-chan models.Event
	Connected() <-chan struct{}
	Stop()
}

// ChannelDialer opens the live channel for a session's channel reference.
type ChannelDialer interface {
	Dial(ctx context.Context, channelRef string) (Channel, error)
}

// RenderOptions carries per-message presentation flags to the surface.
type RenderOptions struct {
	// Blockable attaches interactive block controls. Only live,
	// non-replay participant content is blockable.
	Blockable bool
	// Replaced is set when the message already existed and its rendered
	// content should be swapped in place.
	Replaced bool
}

// Surface is the rendering collaborator. The engine reads the scroll
// position before mutations and orders a live-edge scroll after them;
// it never inspects rendered markup.
type Surface interface {
	ScrollPosition() scroll.Position
	ScrollToLiveEdge()
	UpsertMessage(m models.Message, opts RenderOptions)
	RemoveMessage(messageID string)
	BlockMessage(messageID, blockedBy string)
	// MarkPending toggles the in-progress marker shown while a
	// moderation request for the message is in flight.
	MarkPending(messageID string, pending bool)
	FreezeHeight()
}

// Header receives lozenge/metadata/key-point pushes. It owns no state
// the engine reads back.
type Header interface {
	SetLozenge(status models.SessionStatus)
	SetTitle(title string)
	SetExcerpt(excerpt string)
	AddKeyPoint(messageID, keyText string)
	RemoveKeyPoint(messageID string)
}

// Roster tracks participant presentation. Duplicate adds must no-op.
type Roster interface {
	AddParticipant(p models.Participant)
	Contains(participantID string) bool
}

// Editor is the authoring surface collaborator.
type Editor interface {
	SessionStarted()
	SessionEnded()
	PopulateMessageField(value string)
}

// Alerter surfaces one-shot user-visible failures.
type Alerter interface {
	Alert(message string)
}
