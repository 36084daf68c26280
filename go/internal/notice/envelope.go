package notice

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/ctfsession/go/internal/apierr"
	"github.com/mcdev12/ctfsession/go/internal/models"
)

// NoticeEnvelopeType is the push message type carrying a game notice.
const NoticeEnvelopeType = "ReceivedGameNotice"

// Envelope is a push frame: {type, message}.
type Envelope struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

// FrameHandler receives raw push frames from a Channel.
type FrameHandler func(data []byte)

// DecodeFrame decodes a push frame. ok is false for well-formed frames of another
// type. Any decode failure wraps apierr.ErrMalformedPayload.
func DecodeFrame(data []byte) (n models.Notice, ok bool, err error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return models.Notice{}, false, fmt.Errorf("decode envelope: %v: %w", err, apierr.ErrMalformedPayload)
	}
	if env.Type == "" {
		return models.Notice{}, false, fmt.Errorf("envelope without type: %w", apierr.ErrMalformedPayload)
	}
	if env.Type != NoticeEnvelopeType {
		return models.Notice{}, false, nil
	}

	var msg models.NoticeMessage
	if err := json.Unmarshal(env.Message, &msg); err != nil {
		return models.Notice{}, false, fmt.Errorf("decode notice: %v: %w", err, apierr.ErrMalformedPayload)
	}
	n, err = msg.Notice()
	if err != nil {
		return models.Notice{}, false, err
	}
	return n, true, nil
}

// EncodeFrame wraps a notice in a push frame.
func EncodeFrame(n models.Notice) ([]byte, error) {
	message, err := json.Marshal(models.NoticeMessage{Type: string(n.Kind), Time: n.CreatedAt, Values: n.Values()})
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: NoticeEnvelopeType, Message: message})
}
