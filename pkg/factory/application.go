package factory

import (
	"context"

	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/controllers"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/models"
	dbservice "github.com/mynaparrot/plugnmeet-dlspeech/pkg/services/db"
	natsservice "github.com/mynaparrot/plugnmeet-dlspeech/pkg/services/nats"
)

// ApplicationControllers holds all the controllers.
type ApplicationControllers struct {
	AuthController        *controllers.AuthController
	BridgeController      *controllers.BridgeController
	HealthCheckController *controllers.HealthCheckController
}

// Application is the root struct holding all dependencies.
type Application struct {
	Controllers *ApplicationControllers
	AppConfig   *config.AppConfig
	Ctx         context.Context
	bridgeModel *models.BridgeModel
	ds          *dbservice.DatabaseService
	natsService *natsservice.NatsService
}

func (a *Application) Boot() error {
	if err := a.ds.AutoMigrate(); err != nil {
		return err
	}
	if err := a.natsService.CreateActivityStream(); err != nil {
		return err
	}

	go a.bridgeModel.StartJanitor()
	return nil
}

func (a *Application) Shutdown() {
	a.bridgeModel.Shutdown()
}
