package entity

import "time"

// MovementKind tipo de movimiento de stock.
type MovementKind string

const (
	MovementEntry MovementKind = "entry" // entrada
	MovementExit  MovementKind = "exit"  // salida
)

// Valid indica si el tipo pertenece al conjunto cerrado {entry, exit}.
func (k MovementKind) Valid() bool {
	return k == MovementEntry || k == MovementExit
}

// Movement representa un cambio de stock registrado contra un producto.
// Quantity siempre es positiva; el signo lo da Kind.
type Movement struct {
	ProductReference string
	Kind             MovementKind
	Quantity         int64
	Reason           string
	Timestamp        time.Time
}

// Signed devuelve la cantidad con signo (+entrada, -salida).
func (m Movement) Signed() int64 {
	if m.Kind == MovementExit {
		return -m.Quantity
	}
	return m.Quantity
}
