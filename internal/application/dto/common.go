package dto

// ErrorResponse cuerpo de error HTTP.
// Statement y Position solo se informan cuando falla una sentencia concreta del lote.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Statement string `json:"statement,omitempty"`
	Position  int    `json:"position,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}
