package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FeedVersion is the event feed envelope version.
const FeedVersion = 1

// ErrBadEnvelope marks feed messages that cannot be used.
var ErrBadEnvelope = errors.New("bad envelope")

// Envelope wraps every event published on the event feed.
type Envelope struct {
	V       int             `json:"v"`
	Type    string          `json:"type"`
	MsgID   string          `json:"msg_id"`
	ConnID  int             `json:"conn_id,omitempty"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope builds an envelope for one event of connection connID. Each
// envelope gets a fresh msg_id. A nil payload is left out.
func NewEnvelope(msgType string, connID int, at time.Time, payload any) (Envelope, error) {
	env := Envelope{
		V:      FeedVersion,
		Type:   msgType,
		MsgID:  uuid.NewString(),
		ConnID: connID,
		At:     at,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	return env, nil
}

// ParseEnvelope decodes and validates one feed message.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Validate checks the version, the type and the message id.
func (e Envelope) Validate() error {
	switch {
	case e.V != FeedVersion:
		return fmt.Errorf("%w: version %d, want %d", ErrBadEnvelope, e.V, FeedVersion)
	case !KnownType(e.Type):
		return fmt.Errorf("%w: unknown type %q", ErrBadEnvelope, e.Type)
	case e.MsgID == "":
		return fmt.Errorf("%w: missing msg_id", ErrBadEnvelope)
	}
	return nil
}

// Decode unmarshals the payload into out.
func (e Envelope) Decode(out any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s envelope has no payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}
