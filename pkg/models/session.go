package models

// Session lifecycle statuses.
type SessionStatus string

const (
	StatusPending SessionStatus = "pending"
	StatusActive  SessionStatus = "inprogress"
	StatusClosed  SessionStatus = "closed"
)

// Display orders for the conversation view. Reverse-chronological renders
// the newest message first ("descending" on the wire).
type DisplayOrder string

const (
	OrderChronological        DisplayOrder = "ascending"
	OrderReverseChronological DisplayOrder = "descending"
)

// Valid reports whether s is a known lifecycle status.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusClosed:
		return true
	}
	return false
}

// Valid reports whether o is a known display order.
func (o DisplayOrder) Valid() bool {
	return o == OrderChronological || o == OrderReverseChronological
}

// SessionSnapshot is the result of session initialization: lifecycle,
// presentation settings, roster and the caller's permission flags.
type SessionSnapshot struct {
	SessionID              string        `json:"session_id"`
	Status                 SessionStatus `json:"status"`
	ContentOrder           DisplayOrder  `json:"content_order"`
	Channel                string        `json:"channel"`
	ConnectionNotification string        `json:"connection_notification,omitempty"`
	FixedHeight            bool          `json:"fixed_height,omitempty"`
	IsParticipant          bool          `json:"isparticipant"`
	IsEditor               bool          `json:"iseditor"`
	AllowEditAndDelete     bool          `json:"alloweditanddeletepreviousmessages"`
	InsertKeyText          bool          `json:"insertkeytext"`
	AuthorNameStyle        string        `json:"authornamestyle,omitempty"`
	Participants           []Participant `json:"participants,omitempty"`
	Time                   int64         `json:"time,omitempty"`
}

// ActionResult is the outcome of an authoring or moderation request. On
// failure Reason carries a human-readable explanation for the alert
// surface.
type ActionResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}
