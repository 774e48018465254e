package controllers

import "github.com/gofiber/fiber/v2"

type CommonResponse struct {
	Status bool   `json:"status"`
	Msg    string `json:"msg"`
}

func sendCommonResponse(c *fiber.Ctx, status bool, msg string) error {
	return c.JSON(CommonResponse{
		Status: status,
		Msg:    msg,
	})
}
