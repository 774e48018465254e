package azure

import (
	"context"
	"fmt"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/audio"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"github.com/sirupsen/logrus"
)

// sttClient recognizes single utterances of PCM audio.
type sttClient struct {
	creds *config.CredentialsConfig
	conf  *config.DirectLineSpeechConfig
	log   *logrus.Entry
}

func newSTTClient(creds *config.CredentialsConfig, conf *config.DirectLineSpeechConfig, log *logrus.Entry) (*sttClient, error) {
	return &sttClient{
		creds: creds,
		conf:  conf,
		log:   log.WithField("service", "azure-stt"),
	}, nil
}

func (c *sttClient) Recognize(ctx context.Context, pcm []byte) (string, error) {
	conf, err := speech.NewSpeechConfigFromSubscription(c.creds.APIKey, c.creds.Region)
	if err != nil {
		return "", fmt.Errorf("failed to create azure speech config: %w", err)
	}
	defer conf.Close()

	if c.conf.Language != "" {
		if err = conf.SetSpeechRecognitionLanguage(c.conf.Language); err != nil {
			return "", err
		}
	}

	audioFormat, err := audio.GetWaveFormatPCM(16000, 16, 1)
	if err != nil {
		return "", fmt.Errorf("could not create audio format: %w", err)
	}
	defer audioFormat.Close()

	inputStream, err := audio.CreatePushAudioInputStreamFromFormat(audioFormat)
	if err != nil {
		return "", fmt.Errorf("could not create push audio stream: %w", err)
	}
	defer inputStream.Close()

	audioConfig, err := audio.NewAudioConfigFromStreamInput(inputStream)
	if err != nil {
		return "", err
	}
	defer audioConfig.Close()

	recognizer, err := speech.NewSpeechRecognizerFromConfig(conf, audioConfig)
	if err != nil {
		return "", err
	}
	defer recognizer.Close()

	if err = inputStream.Write(pcm); err != nil {
		return "", fmt.Errorf("failed to push audio: %w", err)
	}
	// no more audio will follow
	inputStream.CloseStream()

	var outcome speech.SpeechRecognitionOutcome
	select {
	case outcome = <-recognizer.RecognizeOnceAsync():
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer outcome.Close()

	if outcome.Error != nil {
		return "", outcome.Error
	}

	switch outcome.Result.Reason {
	case common.RecognizedSpeech:
		return outcome.Result.Text, nil
	case common.NoMatch:
		return "", nil
	default:
		return "", fmt.Errorf("recognition ended with reason %s", outcome.Result.Reason.String())
	}
}

func (c *sttClient) Close() error {
	return nil
}
