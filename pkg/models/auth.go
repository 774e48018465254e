package models

import (
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
	"github.com/sirupsen/logrus"
)

type AuthModel struct {
	app    *config.AppConfig
	logger *logrus.Entry
}

func NewAuthModel(app *config.AppConfig, logger *logrus.Logger) *AuthModel {
	if app == nil {
		app = config.GetConfig()
	}

	return &AuthModel{
		app:    app,
		logger: logger.WithField("model", "auth"),
	}
}
