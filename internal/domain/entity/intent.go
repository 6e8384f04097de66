package entity

// Intent clasificación de un prompt dentro del conjunto cerrado de operaciones.
type Intent string

const (
	IntentListInventory  Intent = "list_inventory"
	IntentLowStockQuery  Intent = "low_stock_query"
	IntentRegisterEntry  Intent = "register_entry"
	IntentRegisterExit   Intent = "register_exit"
	IntentGenerateReport Intent = "generate_report"
	IntentRawPassthrough Intent = "raw_passthrough"
)

// Mutates indica si el intent escribe en el almacén.
func (i Intent) Mutates() bool {
	return i == IntentRegisterEntry || i == IntentRegisterExit
}

// Fields datos extraídos del prompt para parametrizar el SQL.
// Se guardan como texto crudo; el traductor valida y convierte.
type Fields struct {
	Code     string
	Quantity string
	Reason   string

	// Atributos opcionales, usados solo si la política permite crear el producto.
	Name        string
	Description string
	Category    string
	Price       string
	Minimum     string
	Location    string
}

// Classification resultado de clasificar un prompt.
type Classification struct {
	Intent Intent
	Fields Fields
	// Prompt texto original; solo se ejecuta tal cual en raw_passthrough.
	Prompt string
}
