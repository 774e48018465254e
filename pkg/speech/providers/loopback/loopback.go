// Package loopback models the speech service and an echo bot in process.
// Audio is PCM that encodes the text, so synthesis and recognition are
// exact inverses apart from the service's display formatting.
package loopback

import (
	"context"
	"errors"
	"time"

	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/directline"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/speech"
	"github.com/sirupsen/logrus"
)

// DefaultLexicon holds the corrections the service applies to display text.
var DefaultLexicon = map[string]string{
	"bellview": "Bellevue",
}

type Options struct {
	Lexicon map[string]string
	// ReplyDelay is how long the bot takes to answer.
	ReplyDelay time.Duration
	// ConnectDelay is how long connecting takes.
	ConnectDelay time.Duration
	// ConnectError makes every connector fail to connect.
	ConnectError error
}

type Provider struct {
	opts Options
	log  *logrus.Entry
}

func NewProvider(opts Options, log *logrus.Entry) *Provider {
	if opts.Lexicon == nil {
		opts.Lexicon = DefaultLexicon
	}
	return &Provider{
		opts: opts,
		log:  log.WithField("provider", "loopback"),
	}
}

func (p *Provider) NewSynthesizer(_ context.Context) (speech.Synthesizer, error) {
	return &Synthesizer{}, nil
}

func (p *Provider) NewRecognizer(_ context.Context) (speech.Recognizer, error) {
	return &Recognizer{lexicon: p.opts.Lexicon}, nil
}

func (p *Provider) NewConnector(_ context.Context) (directline.Connector, error) {
	return NewEchoConnector(p.opts, p.log), nil
}

type Synthesizer struct{}

func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, errors.New("nothing to synthesize")
	}
	return encodeText(text), nil
}

func (s *Synthesizer) Close() error {
	return nil
}

type Recognizer struct {
	lexicon map[string]string
}

func (r *Recognizer) Recognize(ctx context.Context, pcm []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return normalize(decodeText(pcm), r.lexicon), nil
}

func (r *Recognizer) Close() error {
	return nil
}
