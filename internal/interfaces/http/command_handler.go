package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/bodega-agent/internal/application/bodega"
	"github.com/jhoicas/bodega-agent/internal/application/dto"
	"github.com/jhoicas/bodega-agent/internal/domain"
	"github.com/jhoicas/bodega-agent/internal/domain/entity"
)

// CommandService lo que el handler necesita del pipeline (implementado por *bodega.Router).
type CommandService interface {
	Handle(ctx context.Context, prompt string, conn entity.ConnectionDescriptor) (*bodega.Response, error)
}

// CommandHandler maneja los endpoints del agente de bodega.
type CommandHandler struct {
	svc      CommandService
	backends []string
	timeout  time.Duration
}

// NewCommandHandler construye el handler. timeout <= 0 no limita la duración del comando.
func NewCommandHandler(svc CommandService, backends []string, timeout time.Duration) *CommandHandler {
	return &CommandHandler{svc: svc, backends: backends, timeout: timeout}
}

// Handle godoc
// @Summary      Ejecutar un comando de bodega
// @Description  Clasifica el prompt, lo traduce a SQL y lo ejecuta una vez contra la conexión indicada.
//               Las entradas y salidas se ejecutan como un lote atómico.
// @Tags         bodega
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CommandRequest  true  "prompt y conexión (type, database)"
// @Success      200   {object}  bodega.Response
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      408   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/bodega/commands [post]
func (h *CommandHandler) Handle(c *fiber.Ctx) error {
	var req dto.CommandRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code: "INVALID_BODY", Message: "cuerpo de la petición inválido",
		})
	}

	ctx := c.UserContext()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp, err := h.svc.Handle(ctx, req.Prompt, req.Connection.Descriptor())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(resp)
}

// Operations godoc
// @Summary      Operaciones del panel de bodega
// @Description  Lista las operaciones disponibles con el prompt que dispara cada una y los backends soportados.
// @Tags         bodega
// @Produce      json
// @Success      200  {object}  dto.OperationsResponse
// @Router       /api/bodega/operations [get]
func (h *CommandHandler) Operations(c *fiber.Ctx) error {
	ops := bodega.Operations()
	out := dto.OperationsResponse{
		Operations: make([]dto.OperationDTO, 0, len(ops)),
		Backends:   h.backends,
	}
	for _, op := range ops {
		out.Operations = append(out.Operations, dto.OperationDTO{
			Name: op.Name, Intent: string(op.Intent), Prompt: op.Prompt, Fields: op.Fields,
		})
	}
	return c.JSON(out)
}

// statusByKind código HTTP para cada tipo de error del pipeline.
var statusByKind = map[domain.Kind]int{
	domain.KindClassificationAmbiguous: fiber.StatusBadRequest,
	domain.KindTranslation:             fiber.StatusUnprocessableEntity,
	domain.KindConnection:              fiber.StatusServiceUnavailable,
	domain.KindExecution:               fiber.StatusUnprocessableEntity,
	domain.KindDomainViolation:         fiber.StatusConflict,
	domain.KindTimeout:                 fiber.StatusRequestTimeout,
	domain.KindProvider:                fiber.StatusBadGateway,
}

func writeError(c *fiber.Ctx, err error) error {
	var perr *domain.PipelineError
	if !errors.As(err, &perr) {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Code: "INTERNAL", Message: err.Error(),
		})
	}
	status, ok := statusByKind[perr.Kind]
	if !ok {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(dto.ErrorResponse{
		Code:      string(perr.Kind),
		Message:   perr.Error(),
		Statement: perr.Statement,
		Position:  perr.Position,
		RequestID: perr.RequestID,
	})
}
