package domain

import (
	"errors"
	"fmt"
)

// Tipos de error del pipeline (sin dependencias externas).
// Cada error devuelto por Router.Handle envuelve exactamente uno de estos.
var (
	ErrClassificationAmbiguous = errors.New("comando no reconocido")
	ErrTranslation             = errors.New("no se pudo traducir el comando a SQL")
	ErrConnection              = errors.New("error de conexión con el almacén")
	ErrExecution               = errors.New("error al ejecutar la sentencia")
	ErrDomainViolation         = errors.New("violación de regla de inventario")
	ErrTimeout                 = errors.New("tiempo de espera agotado")
	ErrProvider                = errors.New("error del proveedor de texto")
)

// Causas concretas de ErrDomainViolation.
var (
	ErrInsufficientStock = errors.New("stock insuficiente")
	ErrProductNotFound   = errors.New("producto no encontrado")
)

// Kind nombre estable de un tipo de error, usado en respuestas HTTP y logs.
type Kind string

const (
	KindClassificationAmbiguous Kind = "ClassificationAmbiguous"
	KindTranslation             Kind = "TranslationError"
	KindConnection              Kind = "ConnectionError"
	KindExecution               Kind = "ExecutionError"
	KindDomainViolation         Kind = "DomainViolation"
	KindTimeout                 Kind = "TimeoutError"
	KindProvider                Kind = "ProviderError"
)

var kindSentinels = map[Kind]error{
	KindClassificationAmbiguous: ErrClassificationAmbiguous,
	KindTranslation:             ErrTranslation,
	KindConnection:              ErrConnection,
	KindExecution:               ErrExecution,
	KindDomainViolation:         ErrDomainViolation,
	KindTimeout:                 ErrTimeout,
	KindProvider:                ErrProvider,
}

// PipelineError error estructurado (tipo + mensaje) que recibe quien invoca Handle.
// Position es 1-based dentro del lote; 0 si no aplica.
// RequestID lo asigna el router al devolver el error; no forma parte de Error().
type PipelineError struct {
	Kind      Kind
	Message   string
	Statement string
	Position  int
	RequestID string
	Err       error
}

func (e *PipelineError) Error() string {
	msg := string(e.Kind) + ": " + e.Message
	if e.Position > 0 {
		msg += fmt.Sprintf(" (sentencia %d)", e.Position)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap expone el sentinel del tipo y la causa, para errors.Is/errors.As.
func (e *PipelineError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewError construye un PipelineError sin sentencia asociada.
func NewError(kind Kind, message string, cause error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Err: cause}
}

// StatementError construye un PipelineError ligado a la sentencia en la posición dada.
func StatementError(kind Kind, position int, statement string, cause error) *PipelineError {
	return &PipelineError{
		Kind:      kind,
		Message:   "falló la sentencia",
		Statement: statement,
		Position:  position,
		Err:       cause,
	}
}

// KindOf devuelve el tipo de un error del pipeline, o "" si no lo es.
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
