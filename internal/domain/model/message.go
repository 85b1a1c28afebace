package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ProtocolVersion is the version of the websocket control protocol
const ProtocolVersion = "1.0.0"

// MessageType defines control message types on the websocket endpoint
type MessageType string

const (
	// MessageTypeCompress asks the proxy to compress one image
	MessageTypeCompress MessageType = "compress"
	// MessageTypeBegin announces the compressed image; binary frames follow
	MessageTypeBegin MessageType = "begin"
	// MessageTypeEnd closes a compressed image and carries its size metadata
	MessageTypeEnd MessageType = "end"
	// MessageTypeFallback tells the client to load the original resource
	MessageTypeFallback MessageType = "fallback"
	// MessageTypeError rejects a request
	MessageTypeError MessageType = "error"
)

// Message represents the envelope of every websocket control message
type Message struct {
	// Type is the message type
	Type MessageType `json:"type"`
	// Version is the protocol version
	Version string `json:"version"`
	// Timestamp is when the message was created (in milliseconds since epoch)
	Timestamp int64 `json:"timestamp"`
	// Payload contains the actual message data
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage creates a new message with specified type and payload
func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadJSON json.RawMessage
	var err error

	if payload != nil {
		payloadJSON, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to convert payload to JSON: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Version:   ProtocolVersion,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payloadJSON,
	}, nil
}

// ParsePayload parses message payload into the provided struct
func (m *Message) ParsePayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

// CompressPayload is sent by the client. Zero Quality means the default.
type CompressPayload struct {
	URL       string `json:"url"`
	WebP      bool   `json:"webp"`
	Grayscale bool   `json:"grayscale"`
	Quality   int    `json:"quality,omitempty"`
}

// BeginPayload precedes the binary frames of a compressed image
type BeginPayload struct {
	ContentType  string `json:"content_type"`
	OriginalSize uint64 `json:"original_size"`
}

// EndPayload follows the last binary frame
type EndPayload struct {
	OriginalSize   uint64 `json:"original_size"`
	CompressedSize uint64 `json:"compressed_size"`
	BytesSaved     uint64 `json:"bytes_saved"`
}

// FallbackPayload points the client at the original resource
type FallbackPayload struct {
	Location string `json:"location"`
}

// ErrorPayload is for error messages
type ErrorPayload struct {
	// Status is the HTTP status equivalent of the error
	Status int `json:"status"`
	// Message contains the error details
	Message string `json:"message"`
}
