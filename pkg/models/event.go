package models

import (
	"encoding/json"
	"fmt"
)

// Event kinds carried on the catchup batch and the live channel. Names
// match the wire protocol of the session backend.
const (
	EventMessage      = "msg"
	EventEditMessage  = "editmsg"
	EventBlock        = "block"
	EventDelete       = "delete"
	EventPostSaved    = "postSaved"
	EventStartSession = "startSession"
	EventEndSession   = "end"
)

// Event is the envelope for a single session event. Data is decoded
// lazily by kind; unrecognized kinds are dropped by the dispatcher.
type Event struct {
	Kind string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MessagePayload is the data of msg/editmsg events.
type MessagePayload struct {
	MessageID    string `json:"mid"`
	HTML         string `json:"html"`
	DateModified int64  `json:"datemodified"`
	Author       string `json:"author,omitempty"`
	AuthorName   string `json:"authordisplayname,omitempty"`
	AuthorColor  string `json:"authorcolour,omitempty"`
	KeyText      string `json:"keytext,omitempty"`
}

// BlockPayload is the data of block events.
type BlockPayload struct {
	MessageID string `json:"msgblocked"`
	BlockedBy string `json:"blockedby"`
}

// DeletePayload is the data of delete events. DateModified carries the
// deletion's logical time; zero means "use the removed record's timestamp".
type DeletePayload struct {
	MessageID    string `json:"messageid"`
	DateModified int64  `json:"datemodified,omitempty"`
}

// PostSavedPayload is the data of postSaved metadata events, forwarded to
// the header collaborator and never stored.
type PostSavedPayload struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
}

// MessageEvent decodes the envelope data as a message payload.
func (e Event) MessageEvent() (MessagePayload, error) {
	var p MessagePayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return p, fmt.Errorf("invalid %s payload: %w", e.Kind, err)
	}
	if p.MessageID == "" {
		return p, fmt.Errorf("%s event missing mid", e.Kind)
	}
	return p, nil
}

// BlockEvent decodes the envelope data as a block payload.
func (e Event) BlockEvent() (BlockPayload, error) {
	var p BlockPayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return p, fmt.Errorf("invalid block payload: %w", err)
	}
	if p.MessageID == "" {
		return p, fmt.Errorf("block event missing msgblocked")
	}
	return p, nil
}

// DeleteEvent decodes the envelope data as a delete payload.
func (e Event) DeleteEvent() (DeletePayload, error) {
	var p DeletePayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return p, fmt.Errorf("invalid delete payload: %w", err)
	}
	if p.MessageID == "" {
		return p, fmt.Errorf("delete event missing messageid")
	}
	return p, nil
}

// PostSavedEvent decodes the envelope data as a postSaved payload.
func (e Event) PostSavedEvent() (PostSavedPayload, error) {
	var p PostSavedPayload
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return p, fmt.Errorf("invalid postSaved payload: %w", err)
	}
	return p, nil
}

// NewEvent builds an envelope from a kind and payload, marshaling data.
func NewEvent(kind string, data interface{}) (Event, error) {
	if data == nil {
		return Event{Kind: kind}, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	return Event{Kind: kind, Data: b}, nil
}
