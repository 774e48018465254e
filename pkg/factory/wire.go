//go:build wireinject
// +build wireinject

package factory

import (
	"context"

	"github.com/google/wire"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/controllers"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/models"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/services/db"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/services/nats"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/services/redis"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/services/speech"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/speech"
	"github.com/sirupsen/logrus"
)

func provideSpeechProvider(app *config.AppConfig, logger *logrus.Logger) (speech.Provider, error) {
	return speechservice.NewProvider(&app.Speech, logger)
}

// build the dependency set for services
var serviceSet = wire.NewSet(
	dbservice.New,
	redisservice.New,
	natsservice.New,
	provideSpeechProvider,
	wire.Bind(new(models.TranscriptStore), new(*redisservice.RedisService)),
	wire.Bind(new(models.ActivityPublisher), new(*natsservice.NatsService)),
	wire.Bind(new(models.SessionRecorder), new(*dbservice.DatabaseService)),
)

// build the dependency set for models
var modelSet = wire.NewSet(
	models.NewAuthModel,
	models.NewBridgeModel,
)

// build the dependency set for controllers
var controllerSet = wire.NewSet(
	controllers.NewAuthController,
	controllers.NewBridgeController,
	controllers.NewHealthCheckController,
)

// NewAppFactory is the injector function that wire will implement.
func NewAppFactory(ctx context.Context, appConfig *config.AppConfig) (*Application, error) {
	wire.Build(
		serviceSet,
		modelSet,
		controllerSet,
		// Provide the whole AppConfig, and also specific fields needed by constructors.
		wire.FieldsOf(new(*config.AppConfig), "DB", "RDS", "Logger"),

		wire.Struct(new(ApplicationControllers), "*"),
		wire.Struct(new(Application), "*"),
	)
	return nil, nil // This return value is ignored.
}
