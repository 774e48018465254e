// Package authtoken exchanges an Azure Speech subscription key for the
// short-lived authorization tokens the service accepts instead of the key.
package authtoken

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"github.com/sirupsen/logrus"
)

const (
	issueTokenUrl = "https://%s.api.cognitive.microsoft.com/sts/v1.0/issueToken"
	// tokens are valid for 10 minutes, renew a bit earlier
	tokenValidity = 9 * time.Minute
	// RenewInterval is how often long-lived connections should swap tokens.
	RenewInterval = tokenValidity
)

// Issuer requests authorization tokens and caches the current one.
type Issuer struct {
	apiKey string
	client *retryablehttp.Client
	url    string
	log    *logrus.Entry

	lock    sync.Mutex
	token   string
	expires time.Time
}

func New(creds *config.CredentialsConfig, log *logrus.Entry) *Issuer {
	return newIssuer(fmt.Sprintf(issueTokenUrl, creds.Region), creds.APIKey, log)
}

func newIssuer(url, apiKey string, log *logrus.Entry) *Issuer {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 3 * time.Second
	client.Logger = nil

	return &Issuer{
		apiKey: apiKey,
		client: client,
		url:    url,
		log:    log.WithField("service", "azure-token"),
	}
}

// Token returns a valid authorization token, requesting a new one when needed.
func (i *Issuer) Token(ctx context.Context) (string, error) {
	i.lock.Lock()
	defer i.lock.Unlock()

	if i.token != "" && time.Now().Before(i.expires) {
		return i.token, nil
	}
	return i.renewLocked(ctx)
}

// Renew always requests a fresh token and caches it.
func (i *Issuer) Renew(ctx context.Context) (string, error) {
	i.lock.Lock()
	defer i.lock.Unlock()
	return i.renewLocked(ctx)
}

func (i *Issuer) renewLocked(ctx context.Context) (string, error) {
	token, err := i.issue(ctx)
	if err != nil {
		return "", err
	}
	i.token = token
	i.expires = time.Now().Add(tokenValidity)
	i.log.Debugln("issued new authorization token")

	return token, nil
}

// KeepFresh renews the token every interval and hands it to apply, until
// ctx is done. A failed renewal is logged and retried on the next tick.
func (i *Issuer) KeepFresh(ctx context.Context, interval time.Duration, apply func(token string) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			token, err := i.Renew(ctx)
			if err != nil {
				if ctx.Err() == nil {
					i.log.WithError(err).Errorln("failed to renew authorization token")
				}
				continue
			}
			if err = apply(token); err != nil {
				i.log.WithError(err).Errorln("failed to apply authorization token")
			}
		}
	}
}

func (i *Issuer) issue(ctx context.Context) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, i.url, strings.NewReader("{}"))
	if err != nil {
		return "", err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", i.apiKey)
	req.Header.Set("content-type", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return string(body), nil
}
