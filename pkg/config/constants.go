package config

import "time"

const (
	SpeechProviderAzure    = "azure"
	SpeechProviderLoopback = "loopback"

	DefaultSpeechLanguage  = "en-US"
	DefaultTrailingSilence = 1 * time.Second
	DefaultActivitySubject = "pnm-dlspeech"

	DefaultMaxSessions        = 50
	DefaultConnectTimeout     = 30 * time.Second
	DefaultRecognitionWorkers = 4
	DefaultTranscriptTTL      = 24 * time.Hour

	// how long a session may stay idle before the janitor ends it
	SessionIdleTimeout = 30 * time.Minute
	JanitorInterval    = 1 * time.Minute
)
