package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "dlspeech"

var (
	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "sessions_created_total",
		Help:      "Number of speech sessions created.",
	})
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "sessions_active",
		Help:      "Number of speech sessions currently connected.",
	})
	utterancesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "utterances_sent_total",
		Help:      "Number of spoken turns sent to the bot.",
	})
	activitiesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "activities_received_total",
		Help:      "Number of activities received from the bot.",
	}, []string{"type"})
)
