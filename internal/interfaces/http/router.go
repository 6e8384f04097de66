package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Commands       CommandService
	Backends       []string
	CommandTimeout time.Duration
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	// Métricas Prometheus (público)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// Bodega: pipeline de comandos en lenguaje natural
	bodega := api.Group("/bodega")
	commandHandler := NewCommandHandler(deps.Commands, deps.Backends, deps.CommandTimeout)
	bodega.Post("/commands", commandHandler.Handle)
	bodega.Get("/operations", commandHandler.Operations)
}
