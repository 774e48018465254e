package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mynaparrot/plugnmeet-dlspeech/pkg/config"
)

type HealthCheckController struct {
	AppConfig *config.AppConfig
}

func NewHealthCheckController(config *config.AppConfig) *HealthCheckController {
	return &HealthCheckController{
		AppConfig: config,
	}
}

func (hc *HealthCheckController) HandleHealthCheck(c *fiber.Ctx) error {
	if rds := hc.AppConfig.RDS; rds != nil {
		if err := rds.Ping(c.UserContext()).Err(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).SendString("redis: " + err.Error())
		}
	}
	if hc.AppConfig.DB != nil {
		db, err := hc.AppConfig.DB.DB()
		if err == nil {
			err = db.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).SendString("db: " + err.Error())
		}
	}
	if nc := hc.AppConfig.NatsConn; nc != nil && !nc.IsConnected() {
		return c.Status(fiber.StatusServiceUnavailable).SendString("nats: " + nc.Status().String())
	}

	return c.Status(fiber.StatusOK).SendString("Healthy")
}
