package controllers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/dbmodels"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/models"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/models/activitymodel"
	redisservice "github.com/mynaparrot/plugnmeet-dlspeech/pkg/services/redis"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/speech/providers/loopback"
	"github.com/sirupsen/logrus"
)

const (
	testApiKey = "plugnmeet"
	testSecret = "zumyyYWqv7KR2kUqvYdq4z4sXg7XTBD2ljT6"
)

type memStore struct {
	mu          sync.Mutex
	transcripts map[string][]*redisservice.TranscriptEntry
}

func (s *memStore) AddTranscript(sessionId string, entry *redisservice.TranscriptEntry, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transcripts == nil {
		s.transcripts = make(map[string][]*redisservice.TranscriptEntry)
	}
	s.transcripts[sessionId] = append(s.transcripts[sessionId], entry)
	return nil
}

func (s *memStore) GetTranscripts(sessionId string) ([]*redisservice.TranscriptEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*redisservice.TranscriptEntry(nil), s.transcripts[sessionId]...), nil
}

func (s *memStore) DeleteTranscripts(sessionId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transcripts, sessionId)
	return nil
}

func (s *memStore) SessionUsage(string, redisservice.SessionTask) (int64, error) {
	return 0, nil
}

type nopPublisher struct{}

func (nopPublisher) PublishActivity(string, *activitymodel.Activity) error {
	return nil
}

func (nopPublisher) DeleteSessionActivities(string) error {
	return nil
}

// memRecorder keeps sessions in insert order.
type memRecorder struct {
	mu       sync.Mutex
	sessions []dbmodels.SpeechSession
}

func (r *memRecorder) InsertOrUpdateSession(info *dbmodels.SpeechSession) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.sessions {
		if r.sessions[i].SessionId == info.SessionId {
			r.sessions[i] = *info
			return 1, nil
		}
	}
	r.sessions = append(r.sessions, *info)
	return 1, nil
}

func (r *memRecorder) GetSessionBySessionId(sessionId string) (*dbmodels.SpeechSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.sessions {
		if r.sessions[i].SessionId == sessionId {
			s := r.sessions[i]
			return &s, nil
		}
	}
	return nil, nil
}

func (r *memRecorder) GetSessions(offset, limit int) ([]dbmodels.SpeechSession, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []dbmodels.SpeechSession
	for i := len(r.sessions) - 1; i >= 0; i-- {
		list = append(list, r.sessions[i])
	}
	total := int64(len(list))
	if offset >= len(list) {
		return nil, total, nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, total, nil
}

type testServer struct {
	app    *fiber.App
	bridge *models.BridgeModel
}

func setupApp() *testServer {
	validity := time.Minute
	appCnf := &config.AppConfig{
		Client: config.ClientInfo{
			ApiKey:        testApiKey,
			Secret:        testSecret,
			TokenValidity: &validity,
		},
		Speech: config.SpeechConfig{Provider: config.SpeechProviderLoopback},
		SessionSettings: config.SessionSettings{
			MaxSessions:        10,
			ConnectTimeout:     5 * time.Second,
			RecognitionWorkers: 2,
			TranscriptTTL:      time.Hour,
		},
	}

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	provider := loopback.NewProvider(loopback.Options{}, logrus.NewEntry(log))

	authModel := models.NewAuthModel(appCnf, log)
	bridgeModel := models.NewBridgeModel(context.Background(), appCnf, provider, new(memStore), nopPublisher{}, new(memRecorder), log)

	ac := NewAuthController(appCnf, authModel)
	bc := NewBridgeController(appCnf, bridgeModel, authModel, log)
	hc := NewHealthCheckController(appCnf)

	app := fiber.New()
	app.Get("/healthCheck", hc.HandleHealthCheck)

	auth := app.Group("/auth", ac.HandleAuthHeaderCheck)
	session := auth.Group("/session")
	session.Post("/create", bc.HandleCreateSession)
	session.Post("/end", bc.HandleEndSession)
	session.Post("/transcripts", bc.HandleGetTranscripts)
	session.Post("/info", bc.HandleGetSessionInfo)
	session.Post("/list", bc.HandleListSessions)

	api := app.Group("/api", ac.HandleVerifyHeaderToken)
	api.Post("/speech/send", bc.HandleSendSpeech)
	api.Post("/activity/post", bc.HandlePostActivity)
	api.Get("/activities", bc.HandleActivities)

	return &testServer{app: app, bridge: bridgeModel}
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
