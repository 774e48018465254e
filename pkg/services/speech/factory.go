package speechservice

import (
	"fmt"

	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/speech"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/speech/providers/azure"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/speech/providers/loopback"
	"github.com/sirupsen/logrus"
)

// NewProvider is a factory function that creates and returns the configured speech provider.
func NewProvider(conf *config.SpeechConfig, logger *logrus.Logger) (speech.Provider, error) {
	log := logger.WithFields(logrus.Fields{
		"provider": conf.Provider,
	})

	switch conf.Provider {
	case config.SpeechProviderAzure:
		p, err := azure.NewProvider(&conf.Credentials, &conf.DirectLineSpeech, log)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.SpeechProviderLoopback:
		return loopback.NewProvider(loopback.Options{
			Lexicon:    conf.Loopback.Lexicon,
			ReplyDelay: conf.Loopback.ReplyDelay,
		}, log), nil
	default:
		return nil, fmt.Errorf("unknown speech provider type: %s", conf.Provider)
	}
}
