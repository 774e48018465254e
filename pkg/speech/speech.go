package speech

import (
	"context"

	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/directline"
)

// All audio crossing the bridge is 16 kHz, 16-bit, mono, little-endian PCM.
const (
	SampleRate    = 16000
	BitsPerSample = 16
	Channels      = 1
)

// Synthesizer turns text into PCM.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Close() error
}

// Recognizer turns PCM into text. Audio without recognizable speech yields
// an empty string and a nil error.
type Recognizer interface {
	Recognize(ctx context.Context, pcm []byte) (string, error)
	Close() error
}

// Provider is the contract every speech backend fulfils.
type Provider interface {
	NewSynthesizer(ctx context.Context) (Synthesizer, error)
	NewRecognizer(ctx context.Context) (Recognizer, error)
	// NewConnector opens a new Direct Line Speech transport.
	NewConnector(ctx context.Context) (directline.Connector, error)
}
