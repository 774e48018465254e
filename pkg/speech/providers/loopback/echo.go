package loopback

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/directline"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/models/activitymodel"
	"github.com/sirupsen/logrus"
)

const replyQueueSize = 64

type reply struct {
	text      string
	replyToId string
}

// EchoConnector is a Direct Line Speech transport whose bot echoes every
// user turn. Replies keep the order of the turns.
type EchoConnector struct {
	opts   Options
	synth  *Synthesizer
	rec    *Recognizer
	botId  string
	logger *logrus.Entry

	lock       sync.Mutex
	onActivity func(in *directline.InboundActivity)
	onCanceled func(err error)
	connected  bool
	closed     bool
	queue      chan reply
	done       chan struct{}
}

func NewEchoConnector(opts Options, logger *logrus.Entry) *EchoConnector {
	if opts.Lexicon == nil {
		opts.Lexicon = DefaultLexicon
	}
	return &EchoConnector{
		opts:   opts,
		synth:  &Synthesizer{},
		rec:    &Recognizer{lexicon: opts.Lexicon},
		botId:  "echo-bot",
		logger: logger.WithField("connector", "echo"),
		queue:  make(chan reply, replyQueueSize),
		done:   make(chan struct{}),
	}
}

func (c *EchoConnector) OnActivity(handler func(in *directline.InboundActivity)) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.onActivity = handler
}

func (c *EchoConnector) OnCanceled(handler func(err error)) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.onCanceled = handler
}

func (c *EchoConnector) Connect(ctx context.Context) error {
	if c.opts.ConnectDelay > 0 {
		select {
		case <-time.After(c.opts.ConnectDelay):
		case <-ctx.Done():
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.opts.ConnectError != nil {
		return c.opts.ConnectError
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return directline.ErrEnded
	}
	if !c.connected {
		c.connected = true
		go c.run()
	}
	return nil
}

func (c *EchoConnector) Disconnect(_ context.Context) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.connected = false
	return nil
}

func (c *EchoConnector) SendActivity(ctx context.Context, payload []byte) (string, error) {
	a, err := activitymodel.Unmarshal(payload)
	if err != nil {
		return "", err
	}
	interactionId := uuid.NewString()
	if a.Type == activitymodel.TypeMessage && a.Text != "" {
		if err = c.enqueue(ctx, reply{text: a.Text, replyToId: a.Id}); err != nil {
			return "", err
		}
	}
	return interactionId, nil
}

func (c *EchoConnector) ListenOnce(ctx context.Context, pcm []byte) (*directline.Recognition, error) {
	text, err := c.rec.Recognize(ctx, pcm)
	if err != nil {
		return nil, err
	}

	rec := &directline.Recognition{
		Text:          text,
		InteractionId: uuid.NewString(),
	}
	if text == "" {
		// nothing heard, so the bot has nothing to answer
		return rec, nil
	}

	if err = c.enqueue(ctx, reply{text: text, replyToId: rec.InteractionId}); err != nil {
		return nil, err
	}
	return rec, nil
}

// Cancel simulates the service dropping the connection.
func (c *EchoConnector) Cancel(err error) {
	c.lock.Lock()
	handler := c.onCanceled
	c.connected = false
	c.lock.Unlock()

	if handler != nil {
		handler(err)
	}
}

// Close stops the bot. It does not wait for a reply being delivered, so it
// may be called from inside an activity handler.
func (c *EchoConnector) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.connected = false
	close(c.done)
	return nil
}

func (c *EchoConnector) enqueue(ctx context.Context, r reply) error {
	c.lock.Lock()
	connected := c.connected
	c.lock.Unlock()
	if !connected {
		return directline.ErrNotConnected
	}

	select {
	case c.queue <- r:
		return nil
	case <-c.done:
		return directline.ErrEnded
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *EchoConnector) run() {
	for {
		select {
		case <-c.done:
			return
		case r := <-c.queue:
			if c.opts.ReplyDelay > 0 {
				time.Sleep(c.opts.ReplyDelay)
			}
			c.deliver(r)
		}
	}
}

func (c *EchoConnector) deliver(r reply) {
	now := time.Now().UTC()
	a := &activitymodel.Activity{
		Type:      activitymodel.TypeMessage,
		Id:        uuid.NewString(),
		Timestamp: &now,
		ChannelId: "directlinespeech",
		From: &activitymodel.ChannelAccount{
			Id:   c.botId,
			Role: activitymodel.RoleBot,
		},
		ReplyToId: r.replyToId,
		Text:      r.text,
		InputHint: activitymodel.InputHintAcceptingInput,
	}

	in := new(directline.InboundActivity)
	if !suppressesSpeech(r.text) {
		a.Speak = r.text
		audio, err := c.synth.Synthesize(context.Background(), a.Speak)
		if err != nil {
			c.logger.WithError(err).Errorln("failed to synthesize reply")
			return
		}
		in.Audio = audio
	}

	payload, err := a.Marshal()
	if err != nil {
		c.logger.WithError(err).Errorln("failed to encode reply")
		return
	}
	in.Payload = payload

	c.lock.Lock()
	handler := c.onActivity
	closed := c.closed
	c.lock.Unlock()
	if handler != nil && !closed {
		handler(in)
	}
}

// suppressesSpeech matches the bot's "Don't speak ..." command.
func suppressesSpeech(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.ReplaceAll(t, "’", "'")
	return strings.HasPrefix(t, "don't speak")
}
