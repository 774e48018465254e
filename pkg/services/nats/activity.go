package natsservice

import (
	"time"

	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/models/activitymodel"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	log "github.com/sirupsen/logrus"
)

const (
	activityStreamMaxMsgs = 10000
	activityAckWait       = 5 * time.Second
)

// CreateActivityStream makes sure relayed activities are retained so late
// consumers can replay a session.
func (s *NatsService) CreateActivityStream() error {
	_, err := s.js.CreateOrUpdateStream(s.ctx, jetstream.StreamConfig{
		Name:              s.streamName(),
		Subjects:          []string{s.prefix + ".*.activity"},
		Replicas:          s.app.NatsInfo.NumReplicas,
		MaxMsgsPerSubject: activityStreamMaxMsgs,
		MaxAge:            s.app.SessionSettings.TranscriptTTL,
	})
	return err
}

// PublishActivity relays a to the session's subject. It does not wait for
// the stream to acknowledge, so it is safe on the activity delivery path.
func (s *NatsService) PublishActivity(sessionId string, a *activitymodel.Activity) error {
	data, err := a.Marshal()
	if err != nil {
		return err
	}

	msg := nats.NewMsg(s.ActivitySubject(sessionId))
	msg.Data = data
	msg.Header.Set("Session-Id", sessionId)
	msg.Header.Set("Activity-Type", a.Type)
	// dedup on redelivery
	msg.Header.Set(nats.MsgIdHdr, a.Id)

	future, err := s.js.PublishMsgAsync(msg)
	if err != nil {
		return err
	}
	go watchAck(future, sessionId, a.Id)
	return nil
}

func watchAck(future jetstream.PubAckFuture, sessionId, activityId string) {
	select {
	case <-future.Ok():
	case err := <-future.Err():
		log.WithFields(log.Fields{
			"sessionId":  sessionId,
			"activityId": activityId,
		}).WithError(err).Warnln("activity was not stored")
	case <-time.After(activityAckWait):
		log.WithFields(log.Fields{
			"sessionId":  sessionId,
			"activityId": activityId,
		}).Warnln("timed out waiting for activity ack")
	}
}

// DeleteSessionActivities drops everything retained for sessionId.
func (s *NatsService) DeleteSessionActivities(sessionId string) error {
	stream, err := s.js.Stream(s.ctx, s.streamName())
	if err != nil {
		return err
	}
	return stream.Purge(s.ctx, jetstream.WithPurgeSubject(s.ActivitySubject(sessionId)))
}
