package directline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/models/activitymodel"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/observable"
	"github.com/sirupsen/logrus"
)

// DirectLine exposes a Connector as an activity stream with connection state.
type DirectLine struct {
	connector  Connector
	status     *observable.Subject[activitymodel.ConnectionStatus]
	activities *observable.Subject[*activitymodel.Activity]
	logger     *logrus.Entry

	conversationId string
	userId         string

	lock sync.Mutex
}

type Options struct {
	ConversationId string
	UserId         string
}

func New(connector Connector, opts Options, logger *logrus.Entry) *DirectLine {
	if opts.ConversationId == "" {
		opts.ConversationId = uuid.NewString()
	}
	if opts.UserId == "" {
		opts.UserId = "dl_" + uuid.NewString()
	}

	d := &DirectLine{
		connector:      connector,
		status:         observable.NewBehaviorSubject(activitymodel.Uninitialized),
		activities:     observable.NewSubject[*activitymodel.Activity](),
		conversationId: opts.ConversationId,
		userId:         opts.UserId,
		logger: logger.WithFields(logrus.Fields{
			"component":      "directline",
			"conversationId": opts.ConversationId,
		}),
	}

	connector.OnActivity(d.handleInbound)
	connector.OnCanceled(d.handleCanceled)

	return d
}

// ConnectionStatus replays the current status to every new observer.
func (d *DirectLine) ConnectionStatus() observable.Source[activitymodel.ConnectionStatus] {
	return d.status
}

// Activities is the stream of inbound activities.
func (d *DirectLine) Activities() observable.Source[*activitymodel.Activity] {
	return d.activities
}

func (d *DirectLine) Status() activitymodel.ConnectionStatus {
	s, _ := d.status.Value()
	return s
}

func (d *DirectLine) ConversationId() string {
	return d.conversationId
}

func (d *DirectLine) UserId() string {
	return d.userId
}

// Connect opens the transport. It may be called once.
func (d *DirectLine) Connect(ctx context.Context) error {
	if !d.transition(activitymodel.Connecting, activitymodel.Uninitialized) {
		return fmt.Errorf("cannot connect from status %s", d.Status())
	}

	err := d.connector.Connect(ctx)
	if err != nil {
		d.logger.WithError(err).Errorln("failed to connect")
		next := activitymodel.FailedToConnect
		if errors.Is(err, ErrTokenExpired) {
			next = activitymodel.ExpiredToken
		}
		d.transition(next, activitymodel.Connecting)
		return err
	}

	if !d.transition(activitymodel.Online, activitymodel.Connecting) {
		// ended while connecting
		return ErrEnded
	}
	d.logger.Infoln("connected")
	return nil
}

// PostActivity sends a as the user and returns its id.
func (d *DirectLine) PostActivity(ctx context.Context, a *activitymodel.Activity) (string, error) {
	if err := d.checkOnline(); err != nil {
		return "", err
	}

	if a.Id == "" {
		a.Id = uuid.NewString()
	}
	if a.Timestamp == nil {
		now := time.Now().UTC()
		a.Timestamp = &now
	}
	if a.From == nil {
		a.From = &activitymodel.ChannelAccount{Id: d.userId, Role: activitymodel.RoleUser}
	}
	if a.Conversation == nil {
		a.Conversation = &activitymodel.ConversationAccount{Id: d.conversationId}
	}

	payload, err := a.Marshal()
	if err != nil {
		return "", err
	}

	if _, err = d.connector.SendActivity(ctx, payload); err != nil {
		return "", fmt.Errorf("send activity: %w", err)
	}
	return a.Id, nil
}

// SendSpeech streams one utterance to the service and returns once it was
// recognized. Replies arrive on Activities.
func (d *DirectLine) SendSpeech(ctx context.Context, pcm []byte) (*Recognition, error) {
	if err := d.checkOnline(); err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, errors.New("empty audio")
	}

	rec, err := d.connector.ListenOnce(ctx, pcm)
	if err != nil {
		return nil, fmt.Errorf("listen once: %w", err)
	}
	d.logger.WithField("recognized", rec.Text).Debugln("utterance recognized")
	return rec, nil
}

// End closes the transport and completes both streams.
func (d *DirectLine) End() {
	d.lock.Lock()
	current := d.Status()
	if current == activitymodel.Ended {
		d.lock.Unlock()
		return
	}
	d.status.Next(activitymodel.Ended)
	d.lock.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if current == activitymodel.Online {
		if err := d.connector.Disconnect(ctx); err != nil {
			d.logger.WithError(err).Warnln("disconnect failed")
		}
	}
	if err := d.connector.Close(); err != nil {
		d.logger.WithError(err).Warnln("close connector failed")
	}

	d.activities.Complete()
	d.status.Complete()
	d.logger.Infoln("ended")
}

func (d *DirectLine) handleInbound(in *InboundActivity) {
	if d.Status() != activitymodel.Online {
		d.logger.Warnln("dropping activity received while not online")
		return
	}

	a, err := activitymodel.Unmarshal(in.Payload)
	if err != nil {
		d.logger.WithError(err).Errorln("failed to decode activity")
		return
	}
	if a.Id == "" {
		a.Id = uuid.NewString()
	}
	if a.Timestamp == nil {
		now := time.Now().UTC()
		a.Timestamp = &now
	}
	if len(in.Audio) > 0 {
		a.SpeechSynthesisAudio = in.Audio
	}

	d.activities.Next(a)
}

func (d *DirectLine) handleCanceled(err error) {
	next := activitymodel.FailedToConnect
	if errors.Is(err, ErrTokenExpired) {
		next = activitymodel.ExpiredToken
	}
	if d.transition(next, activitymodel.Online, activitymodel.Connecting) {
		d.logger.WithError(err).Errorf("transport canceled, status %s", next)
	}
}

func (d *DirectLine) checkOnline() error {
	switch d.Status() {
	case activitymodel.Online:
		return nil
	case activitymodel.Ended:
		return ErrEnded
	case activitymodel.ExpiredToken:
		return ErrTokenExpired
	case activitymodel.FailedToConnect:
		return ErrConnectionFailed
	default:
		return ErrNotConnected
	}
}

// transition moves to next when the current status is one of from.
func (d *DirectLine) transition(next activitymodel.ConnectionStatus, from ...activitymodel.ConnectionStatus) bool {
	d.lock.Lock()
	defer d.lock.Unlock()

	current := d.Status()
	for _, f := range from {
		if current == f {
			d.status.Next(next)
			return true
		}
	}
	return false
}
