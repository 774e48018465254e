package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func readSampleConfig(t *testing.T) *AppConfig {
	t.Helper()
	yamlFile, err := os.ReadFile("../../config_sample.yaml")
	require.NoError(t, err)

	appCnf := new(AppConfig)
	require.NoError(t, yaml.Unmarshal(yamlFile, appCnf))
	return appCnf
}

func TestNew_SampleConfig(t *testing.T) {
	appCnf := readSampleConfig(t)
	appCnf.Speech.Provider = SpeechProviderLoopback

	cnf, err := New(appCnf)
	require.NoError(t, err)
	assert.Same(t, cnf, GetConfig())

	assert.Equal(t, 10*time.Minute, *cnf.Client.TokenValidity)
	assert.Equal(t, "en-US", cnf.Speech.DirectLineSpeech.Language)
	assert.Equal(t, time.Second, cnf.Speech.DirectLineSpeech.TrailingSilence)
	assert.Equal(t, 32000, cnf.Speech.DirectLineSpeech.TrailingSilenceBytes())
	assert.Equal(t, "Bellevue", cnf.Speech.Loopback.Lexicon["bellview"])
	assert.Equal(t, 50*time.Millisecond, cnf.Speech.Loopback.ReplyDelay)
	assert.Equal(t, "pnm_sessions", FormatDBTable("sessions"))
}

func TestNew_Defaults(t *testing.T) {
	cnf, err := New(&AppConfig{
		Speech: SpeechConfig{Provider: SpeechProviderLoopback},
	})
	require.NoError(t, err)

	assert.Equal(t, "/metrics", cnf.Client.PrometheusConf.MetricsPath)
	assert.Equal(t, DefaultMaxSessions, cnf.SessionSettings.MaxSessions)
	assert.Equal(t, DefaultConnectTimeout, cnf.SessionSettings.ConnectTimeout)
	assert.Equal(t, DefaultRecognitionWorkers, cnf.SessionSettings.RecognitionWorkers)
	assert.Equal(t, DefaultActivitySubject, cnf.NatsInfo.Subjects.Activity)
}

func TestNew_AzureNeedsCredentials(t *testing.T) {
	appCnf := readSampleConfig(t)
	appCnf.Speech.Credentials.APIKey = ""

	_, err := New(appCnf)
	assert.Error(t, err)

	_, err = New(&AppConfig{Speech: SpeechConfig{Provider: "watson"}})
	assert.Error(t, err)
}
