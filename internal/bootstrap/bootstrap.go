package bootstrap

import (
	"fmt"

	"github.com/jhoicas/bodega-agent/internal/application/bodega"
	"github.com/jhoicas/bodega-agent/internal/domain/entity"
	infraai "github.com/jhoicas/bodega-agent/internal/infrastructure/ai"
	"github.com/jhoicas/bodega-agent/internal/infrastructure/sqlstore"
	"github.com/jhoicas/bodega-agent/pkg/config"
	"github.com/jhoicas/bodega-agent/pkg/logger"
)

// Pipeline dependencias del agente de bodega ya cableadas.
// Close libera el ejecutor y el proveedor; se llama una vez al terminar el proceso.
type Pipeline struct {
	Router   *bodega.Router
	Executor *sqlstore.Executor
	Provider *infraai.Manager
}

// Build arma el pipeline completo desde la configuración.
func Build(cfg *config.Config, log *logger.Logger, opts ...sqlstore.Option) (*Pipeline, error) {
	provider, err := infraai.NewManager(cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("proveedor de texto: %w", err)
	}

	executor := sqlstore.NewExecutor(cfg.Store, append([]sqlstore.Option{sqlstore.WithLogger(log)}, opts...)...)

	translator := bodega.NewTranslator(bodega.TranslatorConfig{
		MissingProduct:  bodega.MissingProductPolicy(cfg.Inventory.MissingProductPolicy),
		ProviderTimeout: cfg.AI.Timeout,
	}, provider.Generator())

	router := bodega.NewRouter(bodega.NewClassifier(), translator, executor, bodega.RouterConfig{
		Defaults:  DefaultConnection(cfg),
		Unmatched: bodega.UnmatchedPolicy(cfg.Inventory.UnmatchedPolicy),
		Log:       log,
	})

	log.Info().
		Str("provider", provider.Name()).
		Str("default_backend", cfg.Store.DefaultBackend).
		Str("default_database", cfg.Store.DefaultDatabase).
		Str("missing_product_policy", cfg.Inventory.MissingProductPolicy).
		Str("unmatched_policy", cfg.Inventory.UnmatchedPolicy).
		Msg("pipeline de bodega listo")

	return &Pipeline{Router: router, Executor: executor, Provider: provider}, nil
}

// DefaultConnection descriptor usado cuando el comando no indica conexión.
func DefaultConnection(cfg *config.Config) entity.ConnectionDescriptor {
	return entity.ConnectionDescriptor{
		BackendKind:  cfg.Store.DefaultBackend,
		DatabaseName: cfg.Store.DefaultDatabase,
	}
}

// Close libera conexiones del ejecutor y del proveedor.
func (p *Pipeline) Close() error {
	_ = p.Provider.Close()
	return p.Executor.Close()
}
