package helpers

import (
	"context"
	"os"

	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/factory"
	"gopkg.in/yaml.v3"
)

// PrepareServer opens the database, Redis and NATS connections.
func PrepareServer(ctx context.Context, appCnf *config.AppConfig) error {
	err := factory.NewDatabaseConnection(ctx, appCnf)
	if err != nil {
		return err
	}

	err = factory.NewRedisConnection(ctx, appCnf)
	if err != nil {
		return err
	}

	return factory.NewNatsConnection(appCnf)
}

func ReadYamlConfigFile(filename string) (*config.AppConfig, error) {
	yamlFile, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	appCnf := new(config.AppConfig)
	err = yaml.Unmarshal(yamlFile, appCnf)
	if err != nil {
		return nil, err
	}

	// get current working dir
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	// set the root path
	appCnf.RootWorkingDir = wd

	return appCnf, nil
}
