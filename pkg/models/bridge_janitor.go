package models

import (
	"time"

	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
)

// StartJanitor ends sessions that went idle or lost their connection.
func (m *BridgeModel) StartJanitor() {
	ticker := time.NewTicker(config.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			m.logger.Infoln("janitor stopped")
			return
		case <-ticker.C:
			m.cleanupSessions(config.SessionIdleTimeout)
		}
	}
}

func (m *BridgeModel) cleanupSessions(idleTimeout time.Duration) {
	expired := make(map[string]string)

	m.mu.RLock()
	for id, s := range m.sessions {
		switch {
		case s.harness.DirectLine.Status().IsTerminal():
			expired[id] = "connection " + s.harness.DirectLine.Status().String()
		case s.idleFor() > idleTimeout:
			expired[id] = "idle"
		}
	}
	m.mu.RUnlock()

	for id, reason := range expired {
		if err := m.EndSession(id, reason); err != nil {
			m.logger.WithError(err).WithField("sessionId", id).Warnln("janitor failed to end session")
		}
	}
}
