package bodega

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/bodega-agent/internal/application/ports"
	"github.com/jhoicas/bodega-agent/internal/domain"
	"github.com/jhoicas/bodega-agent/internal/domain/entity"
	"github.com/jhoicas/bodega-agent/internal/domain/inventory"
	"github.com/jhoicas/bodega-agent/internal/observability"
	"github.com/jhoicas/bodega-agent/pkg/logger"
)

// UnmatchedPolicy qué hacer con un prompt que no coincide con ninguna regla.
type UnmatchedPolicy string

const (
	// UnmatchedPassthrough ejecuta el texto tal cual como SQL (modo de confianza).
	UnmatchedPassthrough UnmatchedPolicy = "passthrough"
	// UnmatchedReject devuelve ClassificationAmbiguous.
	UnmatchedReject UnmatchedPolicy = "reject"
	// UnmatchedProvider pide el SQL al proveedor de texto.
	UnmatchedProvider UnmatchedPolicy = "provider"
)

// RouterConfig opciones del router. Defaults se usa para los campos vacíos del descriptor.
type RouterConfig struct {
	Defaults  entity.ConnectionDescriptor
	Unmatched UnmatchedPolicy
	Log       *logger.Logger
}

// Response resultado de un comando: lo ejecutado y el resultado anotado.
type Response struct {
	RequestID  string                      `json:"request_id"`
	Intent     entity.Intent               `json:"intent"`
	Connection entity.ConnectionDescriptor `json:"connection"`
	Statements []string                    `json:"statements"`
	Result     *entity.ExecutionResult     `json:"result"`
}

// Router punto de entrada del pipeline: clasifica, traduce, ejecuta una vez y anota.
type Router struct {
	classifier *Classifier
	translator *Translator
	executor   ports.StatementExecutor
	cfg        RouterConfig
	log        *logger.Logger
}

// NewRouter construye el router con sus dependencias explícitas.
func NewRouter(classifier *Classifier, translator *Translator, executor ports.StatementExecutor, cfg RouterConfig) *Router {
	if cfg.Defaults.BackendKind == "" {
		cfg.Defaults.BackendKind = entity.BackendMySQL
	}
	if cfg.Defaults.DatabaseName == "" {
		cfg.Defaults.DatabaseName = "bodega_inventory"
	}
	if cfg.Unmatched == "" {
		cfg.Unmatched = UnmatchedPassthrough
	}
	log := cfg.Log
	if log == nil {
		log = logger.Nop()
	}
	if classifier == nil {
		classifier = NewClassifier()
	}
	return &Router{classifier: classifier, translator: translator, executor: executor, cfg: cfg, log: log}
}

// Handle procesa un prompt contra la conexión indicada.
// Los errores devueltos son *domain.PipelineError con el RequestID del comando.
func (r *Router) Handle(ctx context.Context, prompt string, conn entity.ConnectionDescriptor) (*Response, error) {
	start := time.Now()
	resp := &Response{
		RequestID:  uuid.NewString(),
		Connection: r.withDefaults(conn),
	}

	result, err := r.handle(ctx, prompt, resp)

	outcome := "ok"
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	observability.ObserveCommand(string(resp.Intent), outcome, time.Since(start))

	ev := r.log.Info()
	if err != nil {
		ev = r.log.Warn().Err(err).Str("error_kind", outcome)
	}
	ev.Str("request_id", resp.RequestID).
		Str("intent", string(resp.Intent)).
		Str("backend", resp.Connection.BackendKind).
		Str("database", resp.Connection.DatabaseName).
		Int("statements", len(resp.Statements)).
		Dur("duration", time.Since(start)).
		Msg("comando procesado")

	if err != nil {
		var pe *domain.PipelineError
		if errors.As(err, &pe) {
			pe.RequestID = resp.RequestID
		}
		return nil, err
	}
	resp.Result = result
	return resp, nil
}

func (r *Router) handle(ctx context.Context, prompt string, resp *Response) (*entity.ExecutionResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, domain.NewError(domain.KindClassificationAmbiguous, "el comando está vacío", nil)
	}

	cls := r.classifier.Classify(prompt)
	resp.Intent = cls.Intent

	batch, err := r.statementsFor(ctx, cls)
	if err != nil {
		return nil, err
	}
	resp.Statements = make([]string, len(batch))
	for i, st := range batch {
		resp.Statements[i] = st.SQL
	}

	result, err := r.executor.Execute(ctx, batch, resp.Connection)
	if err != nil {
		return nil, asPipelineError(err)
	}
	return inventory.Annotate(result), nil
}

func (r *Router) statementsFor(ctx context.Context, cls entity.Classification) ([]entity.Statement, error) {
	if cls.Intent != entity.IntentRawPassthrough {
		return r.translator.Translate(cls.Intent, cls.Fields)
	}
	switch r.cfg.Unmatched {
	case UnmatchedReject:
		return nil, domain.NewError(domain.KindClassificationAmbiguous, "el comando no coincide con ninguna operación conocida", nil)
	case UnmatchedProvider:
		return r.translator.TranslateFreeText(ctx, cls.Prompt)
	}
	return r.translator.Passthrough(cls.Prompt), nil
}

func (r *Router) withDefaults(conn entity.ConnectionDescriptor) entity.ConnectionDescriptor {
	conn.BackendKind = strings.ToLower(strings.TrimSpace(conn.BackendKind))
	conn.DatabaseName = strings.TrimSpace(conn.DatabaseName)
	if conn.BackendKind == "" {
		conn.BackendKind = r.cfg.Defaults.BackendKind
	}
	if conn.DatabaseName == "" {
		conn.DatabaseName = r.cfg.Defaults.DatabaseName
	}
	return conn
}

// asPipelineError garantiza que quien llama siempre recibe un error tipado.
func asPipelineError(err error) error {
	if domain.KindOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewError(domain.KindTimeout, "el almacén no respondió a tiempo", err)
	}
	return domain.NewError(domain.KindExecution, "error inesperado del ejecutor", err)
}
