package bodega

import "github.com/jhoicas/bodega-agent/internal/domain/entity"

// Operation operación del panel de bodega: nombre visible, intent al que clasifica
// y el formulario que arma el prompt.
type Operation struct {
	Name   string        `json:"name"`
	Intent entity.Intent `json:"intent"`
	Prompt string        `json:"prompt"`
	Fields []string      `json:"fields,omitempty"`
}

// Operations lista de operaciones del panel, en el orden en que se muestran.
// Cada Prompt, con sus campos completados, clasifica al Intent indicado.
func Operations() []Operation {
	return []Operation{
		{Name: "Ver inventario completo", Intent: entity.IntentListInventory, Prompt: "Ver inventario completo"},
		{
			Name:   "Registrar entrada de productos",
			Intent: entity.IntentRegisterEntry,
			Prompt: "Registrar entrada de producto:\nCódigo: {code}\nNombre: {name}\nCategoría: {category}\nPrecio: {price}\nStock: {quantity}\nStock mínimo: {minimum}\nUbicación: {location}\nMotivo: {reason}",
			Fields: []string{"code", "name", "category", "price", "quantity", "minimum", "location", "reason"},
		},
		{
			Name:   "Registrar salida de productos",
			Intent: entity.IntentRegisterExit,
			Prompt: "Registrar salida de producto:\nCódigo: {code}\nCantidad: {quantity}\nMotivo: {reason}",
			Fields: []string{"code", "quantity", "reason"},
		},
		{Name: "Alertas de stock bajo", Intent: entity.IntentLowStockQuery, Prompt: "Alertas de stock bajo"},
		{Name: "Generar reporte de movimientos", Intent: entity.IntentGenerateReport, Prompt: "Generar reporte de movimientos"},
	}
}
