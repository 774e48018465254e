package azure

import (
	"context"
	"fmt"

	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/directline"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/speech"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/speech/providers/azure/authtoken"
	"github.com/sirupsen/logrus"
)

// AzureProvider implements speech.Provider on top of the Azure Speech SDK.
// Every call builds its own SDK objects, the SDK handles are not shared.
type AzureProvider struct {
	creds  *config.CredentialsConfig
	conf   *config.DirectLineSpeechConfig
	tokens *authtoken.Issuer
	log    *logrus.Entry
}

// NewProvider creates a new, fully configured Azure provider.
func NewProvider(creds *config.CredentialsConfig, conf *config.DirectLineSpeechConfig, log *logrus.Entry) (*AzureProvider, error) {
	if creds.APIKey == "" || creds.Region == "" {
		return nil, fmt.Errorf("azure provider requires api_key (subscription key) and region")
	}

	return &AzureProvider{
		creds:  creds,
		conf:   conf,
		tokens: authtoken.New(creds, log),
		log:    log,
	}, nil
}

func (p *AzureProvider) NewSynthesizer(ctx context.Context) (speech.Synthesizer, error) {
	return newTTSClient(p.creds, p.conf, p.log)
}

func (p *AzureProvider) NewRecognizer(ctx context.Context) (speech.Recognizer, error) {
	return newSTTClient(p.creds, p.conf, p.log)
}

// NewConnector authenticates with the subscription key, or with a token that
// is renewed for as long as the connector stays open when use_token is set.
func (p *AzureProvider) NewConnector(ctx context.Context) (directline.Connector, error) {
	var token string
	if p.conf.UseToken {
		var err error
		token, err = p.tokens.Token(ctx)
		if err != nil {
			return nil, err
		}
	}

	c, err := newDialogConnector(p.creds, p.conf, token, p.log)
	if err != nil {
		return nil, err
	}
	if p.conf.UseToken {
		c.keepTokenFresh(p.tokens)
	}
	return c, nil
}
