package inventory

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/bodega-agent/internal/domain"
	"github.com/jhoicas/bodega-agent/internal/domain/entity"
)

// IsLowStock implementa la regla de stock bajo: StockActual < StockMinimo.
func IsLowStock(current, minimum int64) bool {
	return current < minimum
}

// Annotate devuelve una copia del resultado con las banderas de dominio por fila.
// No modifica las filas originales ni accede al almacén.
// Las filas sin forma de producto (sin stock_current/stock_minimum) quedan sin bandera.
func Annotate(result *entity.ExecutionResult) *entity.ExecutionResult {
	if result == nil {
		return nil
	}
	out := *result
	if result.Kind != entity.ResultRows {
		return &out
	}
	out.Flags = make([]entity.RowFlags, len(result.Rows))
	for i, row := range result.Rows {
		out.Flags[i] = flagsFor(row)
	}
	return &out
}

func flagsFor(row entity.Row) entity.RowFlags {
	rawCurrent, okCurrent := row[entity.ColumnStockCurrent]
	rawMinimum, okMinimum := row[entity.ColumnStockMinimum]
	if !okCurrent || !okMinimum {
		return entity.RowFlags{}
	}
	current, err := toInt64(rawCurrent)
	if err != nil {
		return entity.RowFlags{}
	}
	minimum, err := toInt64(rawMinimum)
	if err != nil {
		return entity.RowFlags{}
	}
	low := IsLowStock(current, minimum)
	return entity.RowFlags{LowStock: &low}
}

// ApplyMovement calcula el stock resultante de aplicar un movimiento.
// Una salida que dejaría el stock negativo devuelve ErrInsufficientStock y el stock sin cambios.
func ApplyMovement(current int64, kind entity.MovementKind, quantity int64) (int64, error) {
	if quantity <= 0 || !kind.Valid() {
		return current, fmt.Errorf("movimiento inválido (%s, %d): %w", kind, quantity, domain.ErrDomainViolation)
	}
	next := current + entity.Movement{Kind: kind, Quantity: quantity}.Signed()
	if next < 0 {
		return current, fmt.Errorf("%w: %w", domain.ErrDomainViolation, domain.ErrInsufficientStock)
	}
	return next, nil
}

// ReplayLedger reconstruye el stock de cada producto a partir del historial de movimientos,
// en orden de inserción. Falla en el primer movimiento que violaría la no negatividad.
func ReplayLedger(movements []entity.Movement) (map[string]int64, error) {
	stock := make(map[string]int64)
	for i, m := range movements {
		next, err := ApplyMovement(stock[m.ProductReference], m.Kind, m.Quantity)
		if err != nil {
			return nil, fmt.Errorf("movimiento %d (%s): %w", i+1, m.ProductReference, err)
		}
		stock[m.ProductReference] = next
	}
	return stock, nil
}

// ProductFromRow arma un Product desde una fila de products.
// Requiere code, stock_current y stock_minimum; el resto de columnas es opcional.
func ProductFromRow(row entity.Row) (entity.Product, error) {
	var p entity.Product
	code, ok := row["code"]
	if !ok || code == nil {
		return p, fmt.Errorf("la fila no tiene código de producto")
	}
	p.Code = toString(code)

	var err error
	if p.StockCurrent, err = toInt64(row[entity.ColumnStockCurrent]); err != nil {
		return p, fmt.Errorf("%s: %w", entity.ColumnStockCurrent, err)
	}
	if p.StockMinimum, err = toInt64(row[entity.ColumnStockMinimum]); err != nil {
		return p, fmt.Errorf("%s: %w", entity.ColumnStockMinimum, err)
	}
	p.Name = toString(row["name"])
	p.Description = toString(row["description"])
	p.Category = toString(row["category"])
	p.Location = toString(row["location"])
	if raw, ok := row["price"]; ok && raw != nil {
		if p.Price, err = toDecimal(raw); err != nil {
			return p, fmt.Errorf("price: %w", err)
		}
	}
	if ts, ok := row["created_at"].(time.Time); ok {
		p.CreatedAt = ts
	}
	return p, nil
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case []byte:
		return decimal.NewFromString(strings.TrimSpace(string(n)))
	case string:
		return decimal.NewFromString(strings.TrimSpace(n))
	default:
		return decimal.Zero, fmt.Errorf("tipo no decimal %T", v)
	}
}

// toInt64 convierte los tipos que devuelven los drivers (int64, float64, []byte, string, decimal).
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("valor fuera de rango: %d", n)
		}
		return int64(n), nil
	case float64:
		return int64(math.Floor(n)), nil
	case float32:
		return int64(math.Floor(float64(n))), nil
	case decimal.Decimal:
		return n.Floor().IntPart(), nil
	case []byte:
		return parseInt(string(n))
	case string:
		return parseInt(n)
	case nil:
		return 0, fmt.Errorf("valor nulo")
	default:
		return 0, fmt.Errorf("tipo no numérico %T", v)
	}
}

func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.Floor().IntPart(), nil
}
