// Command bodega ejecuta un único comando en lenguaje natural e imprime el resultado en JSON.
//
//	go run ./cmd/bodega -type sqlite -database bodega_inventory "Alertas de stock bajo"
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jhoicas/bodega-agent/internal/bootstrap"
	"github.com/jhoicas/bodega-agent/internal/domain"
	"github.com/jhoicas/bodega-agent/internal/domain/entity"
	"github.com/jhoicas/bodega-agent/pkg/config"
	"github.com/jhoicas/bodega-agent/pkg/logger"
)

func main() {
	var conn entity.ConnectionDescriptor
	flag.StringVar(&conn.BackendKind, "type", "", "backend: mysql, postgres, sqlite, duckdb (por defecto STORE_DEFAULT_BACKEND)")
	flag.StringVar(&conn.DatabaseName, "database", "", "base de datos (por defecto STORE_DEFAULT_DATABASE)")
	flag.Parse()

	prompt := strings.Join(flag.Args(), " ")
	os.Exit(run(prompt, conn))
}

func run(prompt string, conn entity.ConnectionDescriptor) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cargar configuración:", err)
		return 2
	}
	// stdout queda reservado para el JSON del resultado.
	pipeline, err := bootstrap.Build(cfg, logger.Nop())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer pipeline.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.Timeout+cfg.AI.Timeout)
	defer cancel()

	resp, err := pipeline.Router.Handle(ctx, prompt, conn)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err != nil {
		out := map[string]string{"code": string(domain.KindOf(err)), "message": err.Error()}
		var pe *domain.PipelineError
		if errors.As(err, &pe) {
			out["request_id"] = pe.RequestID
		}
		_ = enc.Encode(out)
		return 1
	}
	_ = enc.Encode(resp)
	return 0
}
