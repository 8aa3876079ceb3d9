package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
)

// MaxMessageSize is the maximum allowed size for an inbound frame in bytes (1MB).
// Enforced at the transport layer before any decoding happens.
const MaxMessageSize = 1_048_576

// Type identifies a message by its mandatory "type" field. The validator's
// schema table and the dispatcher switch in the relay are both keyed on this
// enumeration so the two can never drift apart.
type Type string

// Client-to-server message types.
const (
	TypeRegister                Type = "register"
	TypeMessage                 Type = "message"
	TypeWhitelistAdd            Type = "whitelist_add"
	TypeWhitelistRemove         Type = "whitelist_remove"
	TypeWhitelistToggleWildcard Type = "whitelist_toggle_wildcard"
)

// Server-to-client message types.
const (
	TypeIncomingMessage  Type = "incoming_message"
	TypeWhitelistUpdated Type = "whitelist_updated"
	TypeError            Type = "error"
)

// fieldKind is the semantic type a schema field must carry.
type fieldKind int

const (
	kindString fieldKind = iota
	kindStringList
	kindBool
	kindAny
)

// schemas maps each recognized inbound type to its required fields.
var schemas = map[Type]map[string]fieldKind{
	TypeRegister:                {"user_id": kindString, "whitelist": kindStringList},
	TypeMessage:                 {"recipient_id": kindString, "payload": kindAny},
	TypeWhitelistAdd:            {"user_id": kindString},
	TypeWhitelistRemove:         {"user_id": kindString},
	TypeWhitelistToggleWildcard: {"enabled": kindBool},
}

var (
	errEmptyMessage = errors.New("empty message")
	errTrailingData = errors.New("trailing data after message")
)

// Decode parses a raw frame into an untyped key-value message. Numbers are
// kept as json.Number so a forwarded payload re-marshals to exactly the
// digits the sender wrote; converting through float64 would corrupt
// integers above 2^53.
func Decode(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var msg map[string]any
	if err := dec.Decode(&msg); err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errEmptyMessage
	}
	if dec.More() {
		return nil, errTrailingData
	}
	return msg, nil
}

// Validate reports whether a decoded message conforms to the schema for its
// declared type: the type must be a recognized string and every required
// field must be present with its declared semantic type. Deterministic, no
// side effects.
func Validate(msg map[string]any) bool {
	t, ok := msg["type"].(string)
	if !ok {
		return false
	}
	fields, ok := schemas[Type(t)]
	if !ok {
		return false
	}
	for name, kind := range fields {
		value, present := msg[name]
		if !present || !matches(value, kind) {
			return false
		}
	}
	return true
}

func matches(value any, kind fieldKind) bool {
	switch kind {
	case kindString:
		_, ok := value.(string)
		return ok
	case kindStringList:
		list, ok := value.([]any)
		if !ok {
			return false
		}
		for _, item := range list {
			if _, ok := item.(string); !ok {
				return false
			}
		}
		return true
	case kindBool:
		_, ok := value.(bool)
		return ok
	case kindAny:
		return true
	}
	return false
}

// TypeOf returns the declared type of a validated message.
func TypeOf(msg map[string]any) Type {
	t, _ := msg["type"].(string)
	return Type(t)
}

// String extracts a string field from a validated message.
func String(msg map[string]any, key string) string {
	s, _ := msg[key].(string)
	return s
}

// StringList extracts a list-of-string field from a validated message.
func StringList(msg map[string]any, key string) []string {
	raw, _ := msg[key].([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, _ := item.(string)
		out = append(out, s)
	}
	return out
}

// Bool extracts a boolean field from a validated message.
func Bool(msg map[string]any, key string) bool {
	b, _ := msg[key].(bool)
	return b
}

// IncomingMessage is the envelope forwarded to a recipient. The payload is
// carried verbatim from the sender's frame.
type IncomingMessage struct {
	Type     Type   `json:"type"`
	SenderID string `json:"sender_id"`
	Payload  any    `json:"payload"`
}

// NewIncomingMessage builds the forwarded envelope for a routed message.
func NewIncomingMessage(senderID string, payload any) IncomingMessage {
	return IncomingMessage{Type: TypeIncomingMessage, SenderID: senderID, Payload: payload}
}

// WhitelistUpdated acknowledges a whitelist command to the caller.
type WhitelistUpdated struct {
	Type             Type     `json:"type"`
	Message          string   `json:"message"`
	CurrentWhitelist []string `json:"current_whitelist"`
}

// NewWhitelistUpdated builds a whitelist command acknowledgement.
func NewWhitelistUpdated(action string, current []string) WhitelistUpdated {
	return WhitelistUpdated{Type: TypeWhitelistUpdated, Message: action, CurrentWhitelist: current}
}

// ErrorMessage reports a failure to the sender.
type ErrorMessage struct {
	Type    Type   `json:"type"`
	Message string `json:"message"`
}

// NewDeliveryFailure builds the generic non-delivery response. The wording is
// identical for every cause (offline, wrong room, not whitelisted) so a sender
// cannot infer another user's presence.
func NewDeliveryFailure(recipientID string) ErrorMessage {
	return ErrorMessage{
		Type:    TypeError,
		Message: "Could not deliver message to '" + recipientID + "'. The user may be offline or has not whitelisted you.",
	}
}
