package models

import (
	"sync"
	"time"

	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/dbmodels"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/models/activitymodel"
	redisservice "github.com/mynaparrot/plugnmeet-dlspeech/pkg/services/redis"
)

func testAppConfig() *config.AppConfig {
	validity := time.Minute
	return &config.AppConfig{
		Client: config.ClientInfo{
			ApiKey:        "plugnmeet",
			Secret:        "zumyyYWqv7KR2kUqvYdq4z4sXg7XTBD2ljT6",
			TokenValidity: &validity,
		},
		Speech: config.SpeechConfig{
			Provider: config.SpeechProviderLoopback,
		},
		SessionSettings: config.SessionSettings{
			MaxSessions:        2,
			ConnectTimeout:     5 * time.Second,
			RecognitionWorkers: 2,
			TranscriptTTL:      time.Hour,
		},
	}
}

type fakeStore struct {
	mu          sync.Mutex
	transcripts map[string][]*redisservice.TranscriptEntry
	started     map[string]bool
	ended       map[string]bool
	deleted     map[string]bool
	// beforeAdd runs ahead of every write, outside the lock
	beforeAdd func(entry *redisservice.TranscriptEntry)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		transcripts: make(map[string][]*redisservice.TranscriptEntry),
		started:     make(map[string]bool),
		ended:       make(map[string]bool),
		deleted:     make(map[string]bool),
	}
}

func (f *fakeStore) AddTranscript(sessionId string, entry *redisservice.TranscriptEntry, _ time.Duration) error {
	if f.beforeAdd != nil {
		f.beforeAdd(entry)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts[sessionId] = append(f.transcripts[sessionId], entry)
	return nil
}

func (f *fakeStore) GetTranscripts(sessionId string) ([]*redisservice.TranscriptEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*redisservice.TranscriptEntry(nil), f.transcripts[sessionId]...), nil
}

func (f *fakeStore) DeleteTranscripts(sessionId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.transcripts, sessionId)
	f.deleted[sessionId] = true
	return nil
}

func (f *fakeStore) count(sessionId string, role string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.transcripts[sessionId] {
		if e.Role == role {
			n++
		}
	}
	return n
}

func (f *fakeStore) SessionUsage(sessionId string, task redisservice.SessionTask) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch task {
	case redisservice.SessionStarted:
		f.started[sessionId] = true
	case redisservice.SessionEnded:
		f.ended[sessionId] = true
		return 3, nil
	}
	return 0, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published map[string][]*activitymodel.Activity
	purged    []string
}

func (f *fakePublisher) PublishActivity(sessionId string, a *activitymodel.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.published == nil {
		f.published = make(map[string][]*activitymodel.Activity)
	}
	f.published[sessionId] = append(f.published[sessionId], a)
	return nil
}

func (f *fakePublisher) DeleteSessionActivities(sessionId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.published, sessionId)
	f.purged = append(f.purged, sessionId)
	return nil
}

func (f *fakePublisher) count(sessionId string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published[sessionId])
}

type fakeRecorder struct {
	mu      sync.Mutex
	records map[string]dbmodels.SpeechSession
	// order of first insert
	ids []string
}

func (f *fakeRecorder) InsertOrUpdateSession(info *dbmodels.SpeechSession) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records == nil {
		f.records = make(map[string]dbmodels.SpeechSession)
	}
	if _, ok := f.records[info.SessionId]; !ok {
		f.ids = append(f.ids, info.SessionId)
	}
	f.records[info.SessionId] = *info
	return 1, nil
}

func (f *fakeRecorder) GetSessionBySessionId(sessionId string) (*dbmodels.SpeechSession, error) {
	r, ok := f.get(sessionId)
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *fakeRecorder) GetSessions(offset, limit int) ([]dbmodels.SpeechSession, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []dbmodels.SpeechSession
	for i := len(f.ids) - 1; i >= 0; i-- {
		list = append(list, f.records[f.ids[i]])
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

func (f *fakeRecorder) get(sessionId string) (dbmodels.SpeechSession, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[sessionId]
	return r, ok
}
