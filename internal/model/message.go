// Package model defines the core data structures for noticewin.
package model

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
)

// QueueStatus is the lifecycle state of a stored message.
type QueueStatus string

const (
	// StatusPending means the message is queued and waiting to be shown.
	StatusPending QueueStatus = "pending"
	// StatusShowing means the message is currently presented in a window.
	StatusShowing QueueStatus = "showing"
	// StatusShown means the window was closed after presentation.
	StatusShown QueueStatus = "shown"
	// StatusHidden means the message was revoked before or during display.
	StatusHidden QueueStatus = "hidden"
)

// Terminal reports whether the status is an end state for a message.
func (s QueueStatus) Terminal() bool {
	return s == StatusShown || s == StatusHidden
}

// ValidTransition reports whether from → to is a legal lifecycle change.
//
// State diagram:
//
//	pending ────────► showing ────────► shown
//	   │                 │
//	   └────► hidden ◄───┘  (revocation)
func ValidTransition(from, to QueueStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusShowing || to == StatusHidden
	case StatusShowing:
		return to == StatusShown || to == StatusHidden
	case StatusShown, StatusHidden:
		return false
	}
	return false
}

// Preset anchors for window placement.
const (
	PresetTopLeft      = "top-left"
	PresetTopRight     = "top-right"
	PresetTopCenter    = "top-center"
	PresetBottomLeft   = "bottom-left"
	PresetBottomRight  = "bottom-right"
	PresetBottomCenter = "bottom-center"
	PresetCenter       = "center"
)

// ValidPresets returns all valid placement preset values.
func ValidPresets() []string {
	return []string{
		PresetTopLeft,
		PresetTopRight,
		PresetTopCenter,
		PresetBottomLeft,
		PresetBottomRight,
		PresetBottomCenter,
		PresetCenter,
	}
}

// Position is an optional placement directive for a message window.
// Either Preset names an anchor (with Padding pixels from the chosen edges),
// or X/Y give explicit coordinates. The zero value means "use the configured
// default placement".
type Position struct {
	Preset  string `json:"preset,omitempty" yaml:"preset,omitempty"`
	X       *int   `json:"x,omitempty" yaml:"x,omitempty"`
	Y       *int   `json:"y,omitempty" yaml:"y,omitempty"`
	Padding int    `json:"padding,omitempty" yaml:"padding,omitempty"`
}

// Explicit reports whether the directive carries explicit coordinates.
func (p *Position) Explicit() bool {
	return p != nil && p.X != nil && p.Y != nil
}

// Message is a transient, producer-supplied notification request.
// Payload is opaque to the coordination core; Kind selects the presentation
// template the window will render.
type Message struct {
	ID        string          `json:"id" yaml:"id"`
	Title     string          `json:"title" yaml:"title"`
	Kind      string          `json:"kind" yaml:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty" yaml:"payload,omitempty"`
	MinWidth  int             `json:"min_width,omitempty" yaml:"min_width,omitempty"`
	MinHeight int             `json:"min_height,omitempty" yaml:"min_height,omitempty"`
	Position  *Position       `json:"position,omitempty" yaml:"position,omitempty"`
}

// StoredMessage is the persisted form of a Message.
type StoredMessage struct {
	Message

	// Timestamp records the time of first persistence (RFC 3339).
	Timestamp string `json:"timestamp"`

	QueueStatus   QueueStatus `json:"queue_status"`
	QueuePosition int         `json:"queue_position"`
}

// Validation errors.
var (
	ErrEmptyID       = errors.New("message id cannot be empty")
	ErrEmptyKind     = errors.New("message kind cannot be empty")
	ErrNegativeSize  = errors.New("min_width and min_height cannot be negative")
	ErrInvalidPreset = errors.New("invalid position preset")
)

// NewMessageID generates a ULID for producers that do not assign their own id.
func NewMessageID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("failed to generate ULID: %w", err)
	}
	return id.String(), nil
}

// CanonicalID coerces a producer-supplied identifier to its canonical string
// form. Producers reach the queue through different ingestion paths and ids
// may arrive as strings, integers or floats; every store key, set membership
// test and identity comparison must go through this single choke point.
func CanonicalID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case fmt.Stringer:
		return id.String()
	case int:
		return strconv.Itoa(id)
	case int32:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case uint32:
		return strconv.FormatUint(uint64(id), 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	case float32:
		return strconv.FormatFloat(float64(id), 'f', -1, 32)
	case float64:
		// JSON decoding yields float64 for numeric ids.
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", id)
	}
}

// Canonicalize rewrites the message id to its canonical form.
func (m *Message) Canonicalize() {
	m.ID = CanonicalID(m.ID)
}

// Validate checks that the message has all required fields.
func (m *Message) Validate() error {
	if CanonicalID(m.ID) == "" {
		return ErrEmptyID
	}
	if m.Kind == "" {
		return ErrEmptyKind
	}
	if m.MinWidth < 0 || m.MinHeight < 0 {
		return ErrNegativeSize
	}
	if m.Position != nil && m.Position.Preset != "" {
		valid := false
		for _, p := range ValidPresets() {
			if m.Position.Preset == p {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("%w: %q", ErrInvalidPreset, m.Position.Preset)
		}
	}
	return nil
}

// NewStoredMessage wraps a message for first persistence as pending.
func NewStoredMessage(m Message, position int) StoredMessage {
	m.Canonicalize()
	return StoredMessage{
		Message:       m,
		Timestamp:     time.Now().Format(time.RFC3339),
		QueueStatus:   StatusPending,
		QueuePosition: position,
	}
}

// TimestampTime returns the persistence timestamp as a time.Time.
// The zero time is returned for records with a malformed timestamp.
func (sm *StoredMessage) TimestampTime() time.Time {
	t, err := time.Parse(time.RFC3339, sm.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Clone creates a deep copy of the message.
func (m *Message) Clone() *Message {
	clone := *m
	if m.Payload != nil {
		clone.Payload = make(json.RawMessage, len(m.Payload))
		copy(clone.Payload, m.Payload)
	}
	if m.Position != nil {
		posClone := *m.Position
		if m.Position.X != nil {
			x := *m.Position.X
			posClone.X = &x
		}
		if m.Position.Y != nil {
			y := *m.Position.Y
			posClone.Y = &y
		}
		clone.Position = &posClone
	}
	return &clone
}
