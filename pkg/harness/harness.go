// Package harness pairs a connected DirectLine with speech input and
// recognition of the replies, the way a speech-enabled chat client uses it.
package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/directline"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/models/activitymodel"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/speech"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	ConversationId string
	UserId         string
}

type Harness struct {
	DirectLine *directline.DirectLine

	synthesizer speech.Synthesizer
	recognizer  speech.Recognizer
	connectErr  chan error
	logger      *logrus.Entry
}

// New builds the speech clients and the DirectLine and starts connecting in
// the background. Use directline.WaitForConnected (or WaitForConnected) before
// sending.
func New(ctx context.Context, provider speech.Provider, opts Options, logger *logrus.Entry) (*Harness, error) {
	synthesizer, err := provider.NewSynthesizer(ctx)
	if err != nil {
		return nil, fmt.Errorf("create synthesizer: %w", err)
	}

	recognizer, err := provider.NewRecognizer(ctx)
	if err != nil {
		_ = synthesizer.Close()
		return nil, fmt.Errorf("create recognizer: %w", err)
	}

	connector, err := provider.NewConnector(ctx)
	if err != nil {
		_ = synthesizer.Close()
		_ = recognizer.Close()
		return nil, fmt.Errorf("create connector: %w", err)
	}

	dl := directline.New(connector, directline.Options{
		ConversationId: opts.ConversationId,
		UserId:         opts.UserId,
	}, logger)

	h := &Harness{
		DirectLine:  dl,
		synthesizer: synthesizer,
		recognizer:  recognizer,
		connectErr:  make(chan error, 1),
		logger:      logger.WithField("component", "harness"),
	}

	go func() {
		h.connectErr <- dl.Connect(ctx)
	}()

	return h, nil
}

// WaitForConnected blocks until the DirectLine is online.
func (h *Harness) WaitForConnected(ctx context.Context) error {
	return directline.WaitForConnected(ctx, h.DirectLine)
}

// SendTextAsSpeech synthesizes text and sends it as one spoken turn. It
// returns once the service has recognized the turn; the reply arrives on
// DirectLine.Activities.
func (h *Harness) SendTextAsSpeech(ctx context.Context, text string) error {
	_, err := h.SpeakText(ctx, text)
	return err
}

// SpeakText is SendTextAsSpeech returning what the service recognized.
func (h *Harness) SpeakText(ctx context.Context, text string) (*directline.Recognition, error) {
	pcm, err := h.synthesizer.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("synthesize %q: %w", text, err)
	}
	return h.SendAudio(ctx, pcm)
}

// SendAudio sends recorded PCM as one spoken turn.
func (h *Harness) SendAudio(ctx context.Context, pcm []byte) (*directline.Recognition, error) {
	rec, err := h.DirectLine.SendSpeech(ctx, pcm)
	if err != nil {
		return nil, err
	}
	h.logger.WithField("recognized", rec.Text).Debugln("turn sent")
	return rec, nil
}

// RecognizeActivityAsText transcribes the speech attached to a. An activity
// that carries no spoken content yields "" and a nil error.
func (h *Harness) RecognizeActivityAsText(ctx context.Context, a *activitymodel.Activity) (string, error) {
	if !a.HasSpokenContent() {
		return "", nil
	}

	pcm := a.SpeechSynthesisAudio
	if len(pcm) == 0 {
		var err error
		pcm, err = h.synthesizer.Synthesize(ctx, a.Speak)
		if err != nil {
			return "", fmt.Errorf("synthesize speak: %w", err)
		}
	}

	return h.recognizer.Recognize(ctx, pcm)
}

// RecognizeActivitiesAsText transcribes all activities in parallel and keeps
// their order.
func (h *Harness) RecognizeActivitiesAsText(ctx context.Context, activities []*activitymodel.Activity) ([]string, error) {
	texts := make([]string, len(activities))
	g, ctx := errgroup.WithContext(ctx)

	for i, a := range activities {
		g.Go(func() error {
			text, err := h.RecognizeActivityAsText(ctx, a)
			if err != nil {
				return err
			}
			texts[i] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return texts, nil
}

// Close ends the conversation and releases the speech clients.
func (h *Harness) Close() error {
	h.DirectLine.End()

	var errs []error
	if err := h.synthesizer.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := h.recognizer.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ConnectError returns the result of the background connect once it is known.
func (h *Harness) ConnectError(ctx context.Context) error {
	select {
	case err := <-h.connectErr:
		h.connectErr <- err
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
