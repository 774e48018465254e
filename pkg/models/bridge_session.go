package models

import (
	"cmp"
	"slices"
	"sync/atomic"
	"time"

	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/dbmodels"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/harness"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/models/activitymodel"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/observable"
	redisservice "github.com/mynaparrot/plugnmeet-dlspeech/pkg/services/redis"
	"github.com/sirupsen/logrus"
)

type session struct {
	id      string
	harness *harness.Harness
	sub     observable.Subscription
	record  *dbmodels.SpeechSession
	logger  *logrus.Entry
	created time.Time

	lastActive atomic.Int64
	utterances atomic.Int64
	activities atomic.Int64
	purged     atomic.Bool
}

func newSession(id string, h *harness.Harness, logger *logrus.Entry) *session {
	s := &session{
		id:      id,
		harness: h,
		logger:  logger,
		created: time.Now(),
	}
	s.touch()
	return s
}

func (s *session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func (s *session) idleFor() time.Duration {
	return time.Since(time.Unix(0, s.lastActive.Load()))
}

func (s *session) info() *SessionInfo {
	return &SessionInfo{
		SessionId:      s.id,
		ConversationId: s.harness.DirectLine.ConversationId(),
		UserId:         s.harness.DirectLine.UserId(),
		Status:         s.harness.DirectLine.Status().String(),
		Utterances:     s.utterances.Load(),
		Activities:     s.activities.Load(),
		Created:        s.created.Unix(),
	}
}

func sessionInfoFromRecord(r *dbmodels.SpeechSession) *SessionInfo {
	info := &SessionInfo{
		SessionId:      r.SessionId,
		ConversationId: r.ConversationId,
		UserId:         r.UserId,
		Status:         activitymodel.Ended.String(),
		Utterances:     r.Utterances,
		Activities:     r.Activities,
		Created:        r.Created.Unix(),
		UsageSeconds:   r.UsageSeconds,
		EndReason:      r.EndReason,
	}
	if !r.Ended.IsZero() {
		info.Ended = r.Ended.Unix()
	}
	return info
}

// activityTime is when the activity was sent, falling back to now.
func activityTime(a *activitymodel.Activity) time.Time {
	if a.Timestamp != nil && !a.Timestamp.IsZero() {
		return *a.Timestamp
	}
	return time.Now()
}

// sortTranscripts orders entries by the time of their turn. A user turn
// sorts before a reply stamped in the same millisecond.
func sortTranscripts(entries []*redisservice.TranscriptEntry) {
	slices.SortStableFunc(entries, func(a, b *redisservice.TranscriptEntry) int {
		if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(roleOrder(a.Role), roleOrder(b.Role))
	})
}

func roleOrder(role string) int {
	if role == activitymodel.RoleUser {
		return 0
	}
	return 1
}
