package directline

import (
	"context"
	"errors"
)

var (
	ErrNotConnected     = errors.New("direct line is not connected")
	ErrConnectionFailed = errors.New("direct line failed to connect")
	ErrTokenExpired     = errors.New("direct line token expired")
	ErrEnded            = errors.New("direct line conversation ended")
)

// Recognition is what the service heard from one utterance.
type Recognition struct {
	Text          string
	InteractionId string
}

// InboundActivity is a raw activity as delivered by a Connector.
type InboundActivity struct {
	Payload []byte
	// Audio is the synthesized speech attached to the activity, if any.
	Audio []byte
}

// Connector is the conversation transport underneath DirectLine.
// Implementations call the registered handlers from their own goroutines.
type Connector interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// SendActivity posts a serialized activity and returns the interaction id.
	SendActivity(ctx context.Context, payload []byte) (string, error)

	// ListenOnce streams one utterance of 16 kHz 16-bit mono PCM to the
	// service and returns once the service has recognized it.
	ListenOnce(ctx context.Context, pcm []byte) (*Recognition, error)

	OnActivity(handler func(in *InboundActivity))
	// OnCanceled reports a transport failure. ErrTokenExpired marks an
	// authentication failure.
	OnCanceled(handler func(err error))

	Close() error
}
