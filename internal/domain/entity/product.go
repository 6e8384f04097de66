package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Columnas de products que el dominio interpreta.
const (
	ColumnStockCurrent = "stock_current"
	ColumnStockMinimum = "stock_minimum"
)

// Product representa un producto de la bodega.
// StockCurrent es la suma de los movimientos aplicados; nunca negativo.
type Product struct {
	Code         string // único y estable
	Name         string
	Description  string
	Category     string
	Price        decimal.Decimal
	StockCurrent int64
	StockMinimum int64
	Location     string
	CreatedAt    time.Time
}
