package models

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/dbmodels"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/directline"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/harness"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/models/activitymodel"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/observable"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/speech"
	redisservice "github.com/mynaparrot/plugnmeet-dlspeech/pkg/services/redis"
	"github.com/sirupsen/logrus"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrMaxSessionsReached = errors.New("maximum number of sessions reached")
)

// TranscriptStore keeps transcripts and usage of sessions.
type TranscriptStore interface {
	AddTranscript(sessionId string, entry *redisservice.TranscriptEntry, ttl time.Duration) error
	GetTranscripts(sessionId string) ([]*redisservice.TranscriptEntry, error)
	DeleteTranscripts(sessionId string) error
	SessionUsage(sessionId string, task redisservice.SessionTask) (int64, error)
}

// ActivityPublisher relays inbound activities to other services.
type ActivityPublisher interface {
	PublishActivity(sessionId string, a *activitymodel.Activity) error
	DeleteSessionActivities(sessionId string) error
}

// SessionRecorder persists the session summary.
type SessionRecorder interface {
	InsertOrUpdateSession(info *dbmodels.SpeechSession) (int64, error)
	GetSessionBySessionId(sessionId string) (*dbmodels.SpeechSession, error)
	GetSessions(offset, limit int) ([]dbmodels.SpeechSession, int64, error)
}

type CreateSessionReq struct {
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
}

type SessionInfo struct {
	SessionId      string `json:"session_id"`
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
	Status         string `json:"status"`
	Utterances     int64  `json:"utterances"`
	Activities     int64  `json:"activities"`
	Created        int64  `json:"created"`
	UsageSeconds   int64  `json:"usage_seconds,omitempty"`
	EndReason      string `json:"end_reason,omitempty"`
	Ended          int64  `json:"ended,omitempty"`
}

// BridgeModel owns the live Direct Line Speech sessions.
type BridgeModel struct {
	ctx       context.Context
	cancel    context.CancelFunc
	app       *config.AppConfig
	provider  speech.Provider
	store     TranscriptStore
	publisher ActivityPublisher
	recorder  SessionRecorder
	pool      *workerpool.WorkerPool
	logger    *logrus.Entry

	mu       sync.RWMutex
	sessions map[string]*session
	// connecting sessions hold a slot until they are registered
	pending int
}

func NewBridgeModel(mainCtx context.Context, app *config.AppConfig, provider speech.Provider, store TranscriptStore, publisher ActivityPublisher, recorder SessionRecorder, logger *logrus.Logger) *BridgeModel {
	if app == nil {
		app = config.GetConfig()
	}
	ctx, cancel := context.WithCancel(mainCtx)

	return &BridgeModel{
		ctx:       ctx,
		cancel:    cancel,
		app:       app,
		provider:  provider,
		store:     store,
		publisher: publisher,
		recorder:  recorder,
		pool:      workerpool.New(app.SessionSettings.RecognitionWorkers),
		logger:    logger.WithField("model", "bridge"),
		sessions:  make(map[string]*session),
	}
}

// CreateSession connects a new conversation and waits until it is online.
func (m *BridgeModel) CreateSession(ctx context.Context, req *CreateSessionReq) (*SessionInfo, error) {
	if err := m.reserveSlot(); err != nil {
		return nil, err
	}
	registered := false
	defer func() {
		if !registered {
			m.releaseSlot()
		}
	}()

	sessionId := uuid.NewString()
	log := m.logger.WithField("sessionId", sessionId)

	// the connection outlives the request
	h, err := harness.New(m.ctx, m.provider, harness.Options{
		ConversationId: req.ConversationId,
		UserId:         req.UserId,
	}, log)
	if err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, m.app.SessionSettings.ConnectTimeout)
	defer cancel()
	if err = h.WaitForConnected(waitCtx); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}

	s := newSession(sessionId, h, log)
	s.sub = h.DirectLine.Activities().Subscribe(observable.Observer[*activitymodel.Activity]{
		Next: func(a *activitymodel.Activity) {
			m.handleActivity(s, a)
		},
	})

	m.mu.Lock()
	m.pending--
	m.sessions[sessionId] = s
	registered = true
	m.mu.Unlock()

	if _, err = m.store.SessionUsage(sessionId, redisservice.SessionStarted); err != nil {
		log.WithError(err).Warnln("failed to record session start")
	}
	s.record = &dbmodels.SpeechSession{
		SessionId:      sessionId,
		ConversationId: h.DirectLine.ConversationId(),
		UserId:         h.DirectLine.UserId(),
		Provider:       m.app.Speech.Provider,
	}
	if _, err = m.recorder.InsertOrUpdateSession(s.record); err != nil {
		log.WithError(err).Errorln("failed to save session")
	}

	sessionsCreated.Inc()
	activeSessions.Inc()
	log.Infoln("session created")

	return s.info(), nil
}

// SendText speaks text into the session and returns what was recognized.
func (m *BridgeModel) SendText(ctx context.Context, sessionId, text string) (string, error) {
	s, err := m.getSession(sessionId)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", errors.New("text is required")
	}

	sent := time.Now()
	rec, err := s.harness.SpeakText(ctx, text)
	if err != nil {
		return "", err
	}
	m.afterUtterance(s, rec, sent)
	return rec.Text, nil
}

// SendAudio sends 16kHz 16-bit mono PCM as one spoken turn.
func (m *BridgeModel) SendAudio(ctx context.Context, sessionId string, pcm []byte) (string, error) {
	s, err := m.getSession(sessionId)
	if err != nil {
		return "", err
	}

	sent := time.Now()
	rec, err := s.harness.SendAudio(ctx, pcm)
	if err != nil {
		return "", err
	}
	m.afterUtterance(s, rec, sent)
	return rec.Text, nil
}

// PostActivity sends a typed activity into the conversation.
func (m *BridgeModel) PostActivity(ctx context.Context, sessionId string, a *activitymodel.Activity) (string, error) {
	s, err := m.getSession(sessionId)
	if err != nil {
		return "", err
	}
	s.touch()

	id, err := s.harness.DirectLine.PostActivity(ctx, a)
	if err != nil {
		return "", err
	}
	if a.Type == activitymodel.TypeMessage && a.Text != "" {
		m.addTranscript(s, id, activitymodel.RoleUser, a.Text, activityTime(a))
	}
	return id, nil
}

// Subscribe returns the live activity stream of the session.
func (m *BridgeModel) Subscribe(sessionId string) (observable.Source[*activitymodel.Activity], error) {
	s, err := m.getSession(sessionId)
	if err != nil {
		return nil, err
	}
	return s.harness.DirectLine.Activities(), nil
}

// GetSessionInfo reports a live session, or the stored summary once it ended.
func (m *BridgeModel) GetSessionInfo(sessionId string) (*SessionInfo, error) {
	if s, err := m.getSession(sessionId); err == nil {
		return s.info(), nil
	}

	record, err := m.recorder.GetSessionBySessionId(sessionId)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrSessionNotFound
	}
	return sessionInfoFromRecord(record), nil
}

// ListSessions returns stored sessions, latest first, with live ones
// reporting their current state.
func (m *BridgeModel) ListSessions(offset, limit int) ([]*SessionInfo, int64, error) {
	records, total, err := m.recorder.GetSessions(offset, limit)
	if err != nil {
		return nil, 0, err
	}

	list := make([]*SessionInfo, 0, len(records))
	for i := range records {
		if s, err := m.getSession(records[i].SessionId); err == nil {
			list = append(list, s.info())
			continue
		}
		list = append(list, sessionInfoFromRecord(&records[i]))
	}
	return list, total, nil
}

// EndSession disconnects the session and stores its summary.
func (m *BridgeModel) EndSession(sessionId, reason string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionId]
	if ok {
		delete(m.sessions, sessionId)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.sub.Unsubscribe()
	if err := s.harness.Close(); err != nil {
		s.logger.WithError(err).Warnln("failed to close harness")
	}

	usage, err := m.store.SessionUsage(sessionId, redisservice.SessionEnded)
	if err != nil {
		s.logger.WithError(err).Warnln("failed to record session end")
	}

	if s.record != nil {
		s.record.Utterances = s.utterances.Load()
		s.record.Activities = s.activities.Load()
		s.record.UsageSeconds = usage
		s.record.EndReason = reason
		s.record.Ended = time.Now().UTC()
		if _, err = m.recorder.InsertOrUpdateSession(s.record); err != nil {
			s.logger.WithError(err).Errorln("failed to update session")
		}
	}

	if m.app.SessionSettings.PurgeOnEnd {
		m.purgeSession(s)
	}

	activeSessions.Dec()
	s.logger.WithField("reason", reason).Infoln("session ended")
	return nil
}

// purgeSession drops the transcripts and relayed activities of an ended session.
func (m *BridgeModel) purgeSession(s *session) {
	// recognition already queued for this session must not write afterwards
	s.purged.Store(true)

	if err := m.store.DeleteTranscripts(s.id); err != nil {
		s.logger.WithError(err).Warnln("failed to delete transcripts")
	}
	if err := m.publisher.DeleteSessionActivities(s.id); err != nil {
		s.logger.WithError(err).Warnln("failed to delete relayed activities")
	}
}

// GetTranscripts returns the recognized turns of a session in time order.
func (m *BridgeModel) GetTranscripts(sessionId string) ([]*redisservice.TranscriptEntry, error) {
	entries, err := m.store.GetTranscripts(sessionId)
	if err != nil {
		return nil, err
	}
	sortTranscripts(entries)
	return entries, nil
}

func (m *BridgeModel) Shutdown() {
	m.cancel()

	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		_ = m.EndSession(id, "shutdown")
	}
	m.pool.StopWait()
}

func (m *BridgeModel) reserveSlot() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sessions)+m.pending >= m.app.SessionSettings.MaxSessions {
		return ErrMaxSessionsReached
	}
	m.pending++
	return nil
}

func (m *BridgeModel) releaseSlot() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending--
}

func (m *BridgeModel) getSession(sessionId string) (*session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionId]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// afterUtterance records the user's turn at the time it was sent, which is
// before any reply to it can arrive.
func (m *BridgeModel) afterUtterance(s *session, rec *directline.Recognition, sent time.Time) {
	s.touch()
	s.utterances.Add(1)
	utterancesSent.Inc()
	if rec.Text != "" {
		m.addTranscript(s, rec.InteractionId, activitymodel.RoleUser, rec.Text, sent)
	}
}

// handleActivity runs on the transport's delivery goroutine and must not block.
func (m *BridgeModel) handleActivity(s *session, a *activitymodel.Activity) {
	s.touch()
	s.activities.Add(1)
	activitiesReceived.WithLabelValues(a.Type).Inc()

	if err := m.publisher.PublishActivity(s.id, a); err != nil {
		s.logger.WithError(err).Warnln("failed to publish activity")
	}

	if !a.HasSpokenContent() {
		return
	}
	m.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(m.ctx, m.app.SessionSettings.ConnectTimeout)
		defer cancel()

		text, err := s.harness.RecognizeActivityAsText(ctx, a)
		if err != nil {
			s.logger.WithError(err).Errorln("failed to recognize activity")
			return
		}
		if text != "" {
			m.addTranscript(s, a.Id, activitymodel.RoleBot, text, activityTime(a))
		}
	})
}

func (m *BridgeModel) addTranscript(s *session, activityId, role, text string, at time.Time) {
	if s.purged.Load() {
		return
	}
	err := m.store.AddTranscript(s.id, &redisservice.TranscriptEntry{
		ActivityId: activityId,
		Role:       role,
		Text:       text,
		Timestamp:  at.UnixMilli(),
	}, m.app.SessionSettings.TranscriptTTL)
	if err != nil {
		s.logger.WithError(err).Errorln("failed to add transcript")
	}
}
