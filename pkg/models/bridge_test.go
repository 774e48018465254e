package models

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/directline"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/models/activitymodel"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/observable"
	redisservice "github.com/mynaparrot/plugnmeet-dlspeech/pkg/services/redis"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/speech/providers/loopback"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bridgeFixture struct {
	m         *BridgeModel
	store     *fakeStore
	publisher *fakePublisher
	recorder  *fakeRecorder
}

func newBridgeFixture(t *testing.T, opts loopback.Options) *bridgeFixture {
	t.Helper()
	return newBridgeFixtureWithConfig(t, opts, testAppConfig())
}

func newBridgeFixtureWithConfig(t *testing.T, opts loopback.Options, app *config.AppConfig) *bridgeFixture {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	f := &bridgeFixture{
		store:     newFakeStore(),
		publisher: new(fakePublisher),
		recorder:  new(fakeRecorder),
	}
	provider := loopback.NewProvider(opts, logrus.NewEntry(log))
	f.m = NewBridgeModel(context.Background(), app, provider, f.store, f.publisher, f.recorder, log)
	t.Cleanup(f.m.Shutdown)
	return f
}

func TestBridgeModel_SessionLifecycle(t *testing.T) {
	f := newBridgeFixture(t, loopback.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := f.m.CreateSession(ctx, &CreateSessionReq{UserId: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "user-1", info.UserId)
	assert.Equal(t, activitymodel.Online.String(), info.Status)
	assert.True(t, f.store.started[info.SessionId])

	src, err := f.m.Subscribe(info.SessionId)
	require.NoError(t, err)
	replies := observable.SubscribeAll(observable.Take(src, 2))

	text, err := f.m.SendText(ctx, info.SessionId, "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello.", text)
	_, err = f.m.SendText(ctx, info.SessionId, "bellview")
	require.NoError(t, err)

	got, err := replies.Wait(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// bot replies are transcribed in the background
	require.Eventually(t, func() bool {
		entries, _ := f.m.GetTranscripts(info.SessionId)
		return len(entries) == 4
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, f.publisher.count(info.SessionId))

	entries, err := f.m.GetTranscripts(info.SessionId)
	require.NoError(t, err)
	var botTexts []string
	for _, e := range entries {
		if e.Role == activitymodel.RoleBot {
			botTexts = append(botTexts, e.Text)
		}
	}
	assert.ElementsMatch(t, []string{"Hello.", "Bellevue."}, botTexts)

	require.NoError(t, f.m.EndSession(info.SessionId, "done"))
	assert.True(t, f.store.ended[info.SessionId])

	rec, ok := f.recorder.get(info.SessionId)
	require.True(t, ok)
	assert.Equal(t, int64(2), rec.Utterances)
	assert.Equal(t, int64(2), rec.Activities)
	assert.Equal(t, int64(3), rec.UsageSeconds)
	assert.Equal(t, "done", rec.EndReason)

	_, err = f.m.SendText(ctx, info.SessionId, "late")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, f.m.EndSession(info.SessionId, "again"), ErrSessionNotFound)
}

func TestBridgeModel_DontSpeakIsNotTranscribed(t *testing.T) {
	f := newBridgeFixture(t, loopback.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := f.m.CreateSession(ctx, &CreateSessionReq{})
	require.NoError(t, err)

	src, err := f.m.Subscribe(info.SessionId)
	require.NoError(t, err)
	replies := observable.SubscribeAll(observable.Take(src, 1))

	_, err = f.m.SendText(ctx, info.SessionId, "Don't speak anything.")
	require.NoError(t, err)
	got, err := replies.Wait(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].HasSpokenContent())

	require.Eventually(t, func() bool {
		return f.publisher.count(info.SessionId) == 1
	}, 5*time.Second, 10*time.Millisecond)

	// only the user's own turn
	entries, err := f.m.GetTranscripts(info.SessionId)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, activitymodel.RoleUser, entries[0].Role)
}

func TestBridgeModel_PostActivity(t *testing.T) {
	f := newBridgeFixture(t, loopback.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := f.m.CreateSession(ctx, &CreateSessionReq{})
	require.NoError(t, err)

	src, err := f.m.Subscribe(info.SessionId)
	require.NoError(t, err)
	replies := observable.SubscribeAll(observable.Take(src, 1))

	id, err := f.m.PostActivity(ctx, info.SessionId, &activitymodel.Activity{
		Type: activitymodel.TypeMessage,
		Text: "typed",
	})
	require.NoError(t, err)

	got, err := replies.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, got[0].ReplyToId)
	assert.Equal(t, "typed", got[0].Text)
}

func TestBridgeModel_MaxSessions(t *testing.T) {
	f := newBridgeFixture(t, loopback.Options{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.m.CreateSession(ctx, &CreateSessionReq{})
		require.NoError(t, err)
	}
	_, err := f.m.CreateSession(ctx, &CreateSessionReq{})
	assert.ErrorIs(t, err, ErrMaxSessionsReached)
}

func TestBridgeModel_MaxSessionsConcurrent(t *testing.T) {
	// sessions stay in the connecting state long enough to overlap
	f := newBridgeFixture(t, loopback.Options{ConnectDelay: 50 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const callers = 20
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.m.CreateSession(ctx, &CreateSessionReq{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	created, rejected := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrMaxSessionsReached):
			rejected++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 2, created)
	assert.Equal(t, callers-2, rejected)

	f.m.mu.RLock()
	assert.Len(t, f.m.sessions, 2)
	assert.Zero(t, f.m.pending)
	f.m.mu.RUnlock()
}

func TestBridgeModel_FailedConnectReleasesSlot(t *testing.T) {
	f := newBridgeFixture(t, loopback.Options{ConnectDelay: time.Second})

	for i := 0; i < 2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err := f.m.CreateSession(ctx, &CreateSessionReq{})
		cancel()
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrMaxSessionsReached)
	}

	f.m.mu.RLock()
	defer f.m.mu.RUnlock()
	assert.Empty(t, f.m.sessions)
	assert.Zero(t, f.m.pending)
}

func TestBridgeModel_TranscriptsFollowTurnOrder(t *testing.T) {
	f := newBridgeFixture(t, loopback.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := f.m.CreateSession(ctx, &CreateSessionReq{})
	require.NoError(t, err)

	// let the reply reach the store before the user turn that caused it
	f.store.beforeAdd = func(entry *redisservice.TranscriptEntry) {
		if entry.Role != activitymodel.RoleUser {
			return
		}
		deadline := time.Now().Add(2 * time.Second)
		for f.store.count(info.SessionId, activitymodel.RoleBot) == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
	}

	_, err = f.m.SendText(ctx, info.SessionId, "hello")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.store.count(info.SessionId, activitymodel.RoleUser) == 1
	}, 5*time.Second, 10*time.Millisecond)

	raw, err := f.store.GetTranscripts(info.SessionId)
	require.NoError(t, err)
	require.Len(t, raw, 2)
	require.Equal(t, activitymodel.RoleBot, raw[0].Role)

	entries, err := f.m.GetTranscripts(info.SessionId)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, activitymodel.RoleUser, entries[0].Role)
	assert.Equal(t, activitymodel.RoleBot, entries[1].Role)
	assert.LessOrEqual(t, entries[0].Timestamp, entries[1].Timestamp)
}

func TestSortTranscripts(t *testing.T) {
	entries := []*redisservice.TranscriptEntry{
		{Role: activitymodel.RoleBot, Text: "Second.", Timestamp: 20},
		{Role: activitymodel.RoleBot, Text: "First.", Timestamp: 10},
		{Role: activitymodel.RoleUser, Text: "second", Timestamp: 20},
		{Role: activitymodel.RoleUser, Text: "first", Timestamp: 5},
	}
	sortTranscripts(entries)

	var texts []string
	for _, e := range entries {
		texts = append(texts, e.Text)
	}
	assert.Equal(t, []string{"first", "First.", "second", "Second."}, texts)
}

func TestBridgeModel_PurgeOnEnd(t *testing.T) {
	app := testAppConfig()
	app.SessionSettings.PurgeOnEnd = true
	f := newBridgeFixtureWithConfig(t, loopback.Options{}, app)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := f.m.CreateSession(ctx, &CreateSessionReq{})
	require.NoError(t, err)
	_, err = f.m.SendText(ctx, info.SessionId, "hello")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return f.store.count(info.SessionId, activitymodel.RoleBot) == 1
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, f.m.EndSession(info.SessionId, "done"))

	assert.True(t, f.store.deleted[info.SessionId])
	assert.Contains(t, f.publisher.purged, info.SessionId)
	entries, err := f.m.GetTranscripts(info.SessionId)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// the summary survives the purge
	stored, err := f.m.GetSessionInfo(info.SessionId)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Utterances)
}

func TestBridgeModel_KeepsTranscriptsByDefault(t *testing.T) {
	f := newBridgeFixture(t, loopback.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := f.m.CreateSession(ctx, &CreateSessionReq{})
	require.NoError(t, err)
	_, err = f.m.SendText(ctx, info.SessionId, "hello")
	require.NoError(t, err)
	require.NoError(t, f.m.EndSession(info.SessionId, "done"))

	assert.False(t, f.store.deleted[info.SessionId])
	assert.Empty(t, f.publisher.purged)
	assert.Equal(t, 1, f.store.count(info.SessionId, activitymodel.RoleUser))
}

func TestBridgeModel_SessionInfoAndList(t *testing.T) {
	f := newBridgeFixture(t, loopback.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	first, err := f.m.CreateSession(ctx, &CreateSessionReq{UserId: "first"})
	require.NoError(t, err)
	second, err := f.m.CreateSession(ctx, &CreateSessionReq{UserId: "second"})
	require.NoError(t, err)
	require.NoError(t, f.m.EndSession(first.SessionId, "requested"))

	live, err := f.m.GetSessionInfo(second.SessionId)
	require.NoError(t, err)
	assert.Equal(t, activitymodel.Online.String(), live.Status)

	ended, err := f.m.GetSessionInfo(first.SessionId)
	require.NoError(t, err)
	assert.Equal(t, activitymodel.Ended.String(), ended.Status)
	assert.Equal(t, "requested", ended.EndReason)
	assert.Equal(t, int64(3), ended.UsageSeconds)
	assert.NotZero(t, ended.Ended)

	_, err = f.m.GetSessionInfo("unknown")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	list, total, err := f.m.ListSessions(0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].UserId)
	assert.Equal(t, activitymodel.Online.String(), list[0].Status)
	assert.Equal(t, "first", list[1].UserId)
	assert.Equal(t, activitymodel.Ended.String(), list[1].Status)

	page, total, err := f.m.ListSessions(1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, page, 1)
	assert.Equal(t, "first", page[0].UserId)
}

func TestBridgeModel_ConnectFailure(t *testing.T) {
	f := newBridgeFixture(t, loopback.Options{ConnectError: directline.ErrConnectionFailed})

	_, err := f.m.CreateSession(context.Background(), &CreateSessionReq{})
	assert.ErrorIs(t, err, directline.ErrConnectionFailed)
}

func TestBridgeModel_JanitorEndsIdleSessions(t *testing.T) {
	f := newBridgeFixture(t, loopback.Options{})

	info, err := f.m.CreateSession(context.Background(), &CreateSessionReq{})
	require.NoError(t, err)

	f.m.cleanupSessions(time.Hour)
	live, err := f.m.GetSessionInfo(info.SessionId)
	require.NoError(t, err)
	assert.Equal(t, activitymodel.Online.String(), live.Status)

	f.m.cleanupSessions(0)
	_, err = f.m.SendText(context.Background(), info.SessionId, "late")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	ended, err := f.m.GetSessionInfo(info.SessionId)
	require.NoError(t, err)
	assert.Equal(t, activitymodel.Ended.String(), ended.Status)

	rec, ok := f.recorder.get(info.SessionId)
	require.True(t, ok)
	assert.Equal(t, "idle", rec.EndReason)
}
