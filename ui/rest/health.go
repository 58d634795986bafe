package rest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/arkevo/collabcore/infrastructure/valkey"
	"github.com/arkevo/collabcore/pkg/utils"
)

type Health struct {
	Version string
	Valkey  *valkey.Client // nil in single-node mode
}

func InitRestHealth(app fiber.Router, version string, vk *valkey.Client) Health {
	rest := Health{Version: version, Valkey: vk}
	app.Get("/health", rest.Check)

	return rest
}

func (handler *Health) Check(c *fiber.Ctx) error {
	transport := "memory"
	healthy := true
	if handler.Valkey != nil {
		transport = "valkey"
		healthy = handler.Valkey.IsConnected()
	}

	status := 200
	code := "SUCCESS"
	if !healthy {
		status = 503
		code = "TRANSPORT_UNAVAILABLE"
	}

	return c.Status(status).JSON(utils.ResponseData{
		Status:  status,
		Code:    code,
		Message: "Health check",
		Results: fiber.Map{"version": handler.Version, "transport": transport, "healthy": healthy},
	})
}
