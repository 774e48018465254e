package azure

import (
	"context"
	"fmt"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"github.com/sirupsen/logrus"
)

// ttsClient holds the configuration needed for Azure text-to-speech.
type ttsClient struct {
	creds *config.CredentialsConfig
	conf  *config.DirectLineSpeechConfig
	log   *logrus.Entry
}

func newTTSClient(creds *config.CredentialsConfig, conf *config.DirectLineSpeechConfig, log *logrus.Entry) (*ttsClient, error) {
	return &ttsClient{
		creds: creds,
		conf:  conf,
		log:   log.WithField("service", "azure-tts"),
	}, nil
}

// Synthesize renders text as raw 16kHz 16-bit mono PCM.
func (c *ttsClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	conf, err := speech.NewSpeechConfigFromSubscription(c.creds.APIKey, c.creds.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure speech config: %w", err)
	}
	defer conf.Close()

	if c.conf.Language != "" {
		if err = conf.SetSpeechSynthesisLanguage(c.conf.Language); err != nil {
			return nil, fmt.Errorf("failed to set synthesis language: %w", err)
		}
	}
	if c.conf.Voice != "" {
		if err = conf.SetSpeechSynthesisVoiceName(c.conf.Voice); err != nil {
			return nil, fmt.Errorf("failed to set synthesis voice: %w", err)
		}
	}
	if err = conf.SetSpeechSynthesisOutputFormat(common.Raw16Khz16BitMonoPcm); err != nil {
		return nil, fmt.Errorf("failed to set synthesis output format: %w", err)
	}

	// Audio config is nil as we take the audio from the result.
	synthesizer, err := speech.NewSpeechSynthesizerFromConfig(conf, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech synthesizer: %w", err)
	}
	defer synthesizer.Close()

	var outcome speech.SpeechSynthesisOutcome
	select {
	case outcome = <-synthesizer.SpeakTextAsync(text):
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled while waiting for synthesis result: %w", ctx.Err())
	}
	defer outcome.Close()

	if outcome.Error != nil {
		return nil, fmt.Errorf("synthesis outcome error: %w", outcome.Error)
	}

	if outcome.Result.Reason != common.SynthesizingAudioCompleted {
		cancellation, _ := speech.NewCancellationDetailsFromSpeechSynthesisResult(outcome.Result)
		details := ""
		if cancellation != nil {
			details = cancellation.ErrorDetails
		}
		return nil, fmt.Errorf("synthesis failed: reason=%s, details=%s", outcome.Result.Reason.String(), details)
	}

	c.log.WithField("bytes", len(outcome.Result.AudioData)).Debugln("synthesized text")
	return outcome.Result.AudioData, nil
}

func (c *ttsClient) Close() error {
	return nil
}
