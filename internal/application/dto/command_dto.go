package dto

import "github.com/jhoicas/bodega-agent/internal/domain/entity"

// ConnectionDTO conexión destino. Campos vacíos toman los valores por defecto del servidor.
type ConnectionDTO struct {
	Type     string `json:"type" example:"sqlite"`
	Database string `json:"database" example:"bodega_inventory"`
}

// Descriptor convierte el DTO al descriptor de dominio.
func (c ConnectionDTO) Descriptor() entity.ConnectionDescriptor {
	return entity.ConnectionDescriptor{BackendKind: c.Type, DatabaseName: c.Database}
}

// CommandRequest cuerpo de POST /api/bodega/commands.
type CommandRequest struct {
	Prompt     string        `json:"prompt" example:"Alertas de stock bajo"`
	Connection ConnectionDTO `json:"connection"`
}

// OperationDTO operación del panel con el prompt que la dispara.
type OperationDTO struct {
	Name   string   `json:"name"`
	Intent string   `json:"intent"`
	Prompt string   `json:"prompt"`
	Fields []string `json:"fields,omitempty"`
}

// OperationsResponse listado de operaciones y backends soportados.
type OperationsResponse struct {
	Operations []OperationDTO `json:"operations"`
	Backends   []string       `json:"backends"`
}
