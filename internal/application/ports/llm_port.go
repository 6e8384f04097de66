package ports

import (
	"context"

	"github.com/jhoicas/bodega-agent/internal/domain/entity"
)

// TextGenerator define el puerto de salida hacia los proveedores de texto (Anthropic, Gemini, OpenAI, mock).
// La aplicación solo conoce este contrato: texto de entrada, texto de salida.
// El contexto debe llevar un timeout para evitar bloqueos en llamadas externas.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// StatementExecutor ejecuta una sentencia o un lote atómico contra la conexión indicada.
type StatementExecutor interface {
	Execute(ctx context.Context, batch []entity.Statement, conn entity.ConnectionDescriptor) (*entity.ExecutionResult, error)
}
