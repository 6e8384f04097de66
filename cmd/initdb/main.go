// Command initdb crea las tablas products y movements en la conexión indicada.
//
//	go run ./cmd/initdb -type sqlite -database bodega_inventory
package main

import (
	"context"
	"flag"
	"time"

	"github.com/jhoicas/bodega-agent/internal/bootstrap"
	"github.com/jhoicas/bodega-agent/internal/infrastructure/sqlstore"
	"github.com/jhoicas/bodega-agent/pkg/config"
	"github.com/jhoicas/bodega-agent/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	conn := bootstrap.DefaultConnection(cfg)
	flag.StringVar(&conn.BackendKind, "type", conn.BackendKind, "backend: mysql, postgres, sqlite, duckdb")
	flag.StringVar(&conn.DatabaseName, "database", conn.DatabaseName, "base de datos destino")
	flag.Parse()

	executor := sqlstore.NewExecutor(cfg.Store, sqlstore.WithLogger(log))
	defer executor.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := executor.EnsureSchema(ctx, conn); err != nil {
		log.Fatal().Err(err).Str("backend", conn.BackendKind).Str("database", conn.DatabaseName).Msg("crear esquema")
	}
	log.Info().Str("backend", conn.BackendKind).Str("database", conn.DatabaseName).Msg("esquema listo")
}
