package azure

// This file bridges the Direct Line Speech channel of the Azure Speech SDK
// (dialog.DialogServiceConnector) to directline.Connector.

import (
	"context"
	"fmt"
	"sync"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/dialog"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/directline"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/speech/providers/azure/authtoken"
	"github.com/sirupsen/logrus"
)

const pullChunkSize = 3200

type dialogConnector struct {
	conf        *config.DirectLineSpeechConfig
	botConfig   *dialog.BotFrameworkConfig
	pushStream  *audio.PushAudioInputStream
	audioConfig *audio.AudioConfig
	connector   *dialog.DialogServiceConnector
	log         *logrus.Entry

	// one utterance at a time goes through the push stream
	listenLock sync.Mutex
	stopRenew  context.CancelFunc

	lock       sync.Mutex
	onActivity func(in *directline.InboundActivity)
	onCanceled func(err error)
}

func newDialogConnector(creds *config.CredentialsConfig, conf *config.DirectLineSpeechConfig, token string, log *logrus.Entry) (*dialogConnector, error) {
	var botConfig *dialog.BotFrameworkConfig
	var err error
	if token != "" {
		botConfig, err = dialog.NewBotFrameworkConfigFromAuthorizationToken(token, creds.Region)
	} else {
		botConfig, err = dialog.NewBotFrameworkConfigFromSubscription(creds.APIKey, creds.Region)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create bot framework config: %w", err)
	}

	if conf.Language != "" {
		if err = botConfig.SetLanguage(conf.Language); err != nil {
			botConfig.Close()
			return nil, err
		}
	}

	audioFormat, err := audio.GetWaveFormatPCM(16000, 16, 1)
	if err != nil {
		botConfig.Close()
		return nil, fmt.Errorf("could not create audio format: %w", err)
	}
	defer audioFormat.Close()

	pushStream, err := audio.CreatePushAudioInputStreamFromFormat(audioFormat)
	if err != nil {
		botConfig.Close()
		return nil, fmt.Errorf("could not create push audio stream: %w", err)
	}

	audioConfig, err := audio.NewAudioConfigFromStreamInput(pushStream)
	if err != nil {
		pushStream.Close()
		botConfig.Close()
		return nil, err
	}

	connector, err := dialog.NewDialogServiceConnectorFromConfig(botConfig, audioConfig)
	if err != nil {
		audioConfig.Close()
		pushStream.Close()
		botConfig.Close()
		return nil, fmt.Errorf("failed to create dialog service connector: %w", err)
	}

	c := &dialogConnector{
		conf:        conf,
		botConfig:   botConfig,
		pushStream:  pushStream,
		audioConfig: audioConfig,
		connector:   connector,
		log:         log.WithField("service", "azure-dialog"),
	}

	connector.SessionStarted(func(e speech.SessionEventArgs) {
		defer e.Close()
		c.log.WithField("sessionId", e.SessionID).Infoln("direct line speech session started")
	})
	connector.SessionStopped(func(e speech.SessionEventArgs) {
		defer e.Close()
		c.log.WithField("sessionId", e.SessionID).Infoln("direct line speech session stopped")
	})
	connector.ActivityReceived(c.handleActivity)
	connector.Canceled(c.handleCanceled)

	return c, nil
}

func (c *dialogConnector) OnActivity(handler func(in *directline.InboundActivity)) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.onActivity = handler
}

func (c *dialogConnector) OnCanceled(handler func(err error)) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.onCanceled = handler
}

func (c *dialogConnector) Connect(ctx context.Context) error {
	select {
	case err := <-c.connector.ConnectAsync():
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *dialogConnector) Disconnect(ctx context.Context) error {
	select {
	case err := <-c.connector.DisconnectAsync():
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *dialogConnector) SendActivity(ctx context.Context, payload []byte) (string, error) {
	select {
	case outcome := <-c.connector.SendActivityAsync(string(payload)):
		if outcome.Error != nil {
			return "", outcome.Error
		}
		return outcome.InteractionID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *dialogConnector) ListenOnce(ctx context.Context, pcm []byte) (*directline.Recognition, error) {
	c.listenLock.Lock()
	defer c.listenLock.Unlock()

	if err := c.pushStream.Write(pcm); err != nil {
		return nil, fmt.Errorf("failed to push audio: %w", err)
	}
	// trailing silence lets the service detect the end of the utterance
	if err := c.pushStream.Write(make([]byte, c.conf.TrailingSilenceBytes())); err != nil {
		return nil, fmt.Errorf("failed to push audio: %w", err)
	}

	var outcome speech.SpeechRecognitionOutcome
	select {
	case outcome = <-c.connector.ListenOnceAsync():
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer outcome.Close()

	if outcome.Error != nil {
		return nil, outcome.Error
	}

	rec := &directline.Recognition{
		InteractionId: outcome.Result.ResultID,
	}
	switch outcome.Result.Reason {
	case common.RecognizedSpeech:
		rec.Text = outcome.Result.Text
	case common.NoMatch:
		c.log.Debugln("no speech recognized in utterance")
	default:
		return nil, fmt.Errorf("listen once ended with reason %s", outcome.Result.Reason.String())
	}

	return rec, nil
}

// keepTokenFresh swaps the connector's authorization token before it expires.
func (c *dialogConnector) keepTokenFresh(tokens *authtoken.Issuer) {
	ctx, cancel := context.WithCancel(context.Background())
	c.stopRenew = cancel
	go tokens.KeepFresh(ctx, authtoken.RenewInterval, c.connector.SetAuthorizationToken)
}

func (c *dialogConnector) Close() error {
	if c.stopRenew != nil {
		c.stopRenew()
	}
	c.connector.Close()
	c.audioConfig.Close()
	c.pushStream.Close()
	c.botConfig.Close()
	return nil
}

func (c *dialogConnector) handleActivity(e dialog.ActivityReceivedEventArgs) {
	defer e.Close()

	in := &directline.InboundActivity{
		Payload: []byte(e.Activity),
	}
	if e.HasAudio() {
		pcm, err := readPullStream(e)
		if err != nil {
			c.log.WithError(err).Errorln("failed to read activity audio")
		} else {
			in.Audio = pcm
		}
	}

	c.lock.Lock()
	handler := c.onActivity
	c.lock.Unlock()
	if handler != nil {
		handler(in)
	}
}

func (c *dialogConnector) handleCanceled(e speech.SpeechRecognitionCanceledEventArgs) {
	defer e.Close()
	if e.Reason != common.Error {
		return
	}

	err := cancellationError(e.ErrorCode, e.ErrorDetails)
	c.log.WithError(err).Errorln("direct line speech canceled")

	c.lock.Lock()
	handler := c.onCanceled
	c.lock.Unlock()
	if handler != nil {
		handler(err)
	}
}

func readPullStream(e dialog.ActivityReceivedEventArgs) ([]byte, error) {
	stream, err := e.GetAudio()
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var pcm []byte
	for {
		chunk, err := stream.Read(pullChunkSize)
		if err != nil {
			return nil, err
		}
		if len(chunk) == 0 {
			return pcm, nil
		}
		pcm = append(pcm, chunk...)
	}
}
