package natsservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type NatsService struct {
	ctx    context.Context
	app    *config.AppConfig
	nc     *nats.Conn
	js     jetstream.JetStream
	prefix string
}

func New(app *config.AppConfig) *NatsService {
	if app == nil {
		app = config.GetConfig()
	}

	return &NatsService{
		ctx:    context.Background(),
		app:    app,
		nc:     app.NatsConn,
		js:     app.JetStream,
		prefix: app.NatsInfo.Subjects.Activity,
	}
}

// ActivitySubject is where activities of sessionId are relayed.
func (s *NatsService) ActivitySubject(sessionId string) string {
	return fmt.Sprintf("%s.%s.activity", s.prefix, sessionId)
}

func (s *NatsService) streamName() string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_").Replace(s.prefix)
}
