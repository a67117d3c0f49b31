package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"pulsehr/tools/decode"
)

// Wire events. One JSON frame per websocket message, envelope {event, data}.
const (
	// client -> server
	EventIdentify     = "identify"
	EventSend         = "send"
	EventAckDelivered = "ack_delivered"
	EventAckRead      = "ack_read"
	EventEdit         = "edit"
	EventDelete       = "delete"

	// server -> client
	EventSendConfirmed = "send_confirmed"
	EventMessage       = "message"
	EventStatus        = "status"
	EventEdited        = "edited"
	EventDeleted       = "deleted"
	EventPresence      = "presence"
)

// Frame is the wire envelope. Data stays raw until a handler decodes it
// into its typed payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w", err)
	}
	if f.Event == "" {
		return nil, fmt.Errorf("frame missing event")
	}
	return f, nil
}

// EncodeFrame marshals an envelope around the payload. Payloads are plain
// structs and slices; a marshal failure is a programming error.
func EncodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return json.Marshal(&Frame{Event: event, Data: data})
}

// DecodePayload decodes a frame's data object into a typed payload.
// Identity fields are coerced to string whether they arrived as JSON
// numbers or strings (see tools/decode).
func DecodePayload[T any](f *Frame) (*T, error) {
	var m map[string]any
	if err := json.Unmarshal(f.Data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal %s data: %w", f.Event, err)
	}
	return decode.DecodeMap[T](m)
}

// DecodeStringList decodes an array payload (the presence snapshot),
// coercing numeric entries to strings.
func DecodeStringList(f *Frame) ([]string, error) {
	var raw []any
	if err := json.Unmarshal(f.Data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal %s data: %w", f.Event, err)
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case float64:
			out = append(out, fmt.Sprintf("%.0f", t))
		default:
			out = append(out, fmt.Sprint(t))
		}
	}
	return out, nil
}

// ---- typed payloads ----

type IdentifyPayload struct {
	UserID string `json:"userId"`
}

type SendPayload struct {
	TempID     string `json:"tempId"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text"`
}

type SendConfirmedPayload struct {
	TempID    string    `json:"tempId"`
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

type MessagePayload struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
	Status     string    `json:"status"`
}

// AckPayload acknowledges delivery or read of one message; SenderID names
// the original sender so the relay knows whom to notify.
type AckPayload struct {
	ID       string `json:"id"`
	SenderID string `json:"senderId"`
}

type StatusPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type EditPayload struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	ReceiverID string `json:"receiverId"`
}

type EditedPayload struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type DeletePayload struct {
	ID         string `json:"id"`
	ReceiverID string `json:"receiverId"`
}

type DeletedPayload struct {
	ID string `json:"id"`
}
