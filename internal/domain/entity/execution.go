package entity

// Backends soportados por el ejecutor.
const (
	BackendMySQL    = "mysql"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendDuckDB   = "duckdb"
)

// ConnectionDescriptor identifica la conexión destino: tipo de backend + base de datos.
type ConnectionDescriptor struct {
	BackendKind  string `json:"type"`
	DatabaseName string `json:"database"`
}

// Guard condición que una sentencia debe cumplir dentro del lote.
// Para lecturas cuenta filas devueltas; para escrituras, filas afectadas.
// Si no se cumple, el lote se revierte y se reporta Violation.
type Guard struct {
	MinRows   int64
	Violation error
}

// Statement sentencia SQL con placeholders '?' y sus argumentos.
// Si Unless no es nil se ejecuta antes, en la misma transacción, y la sentencia
// se omite cuando Unless devuelve al menos una fila.
type Statement struct {
	SQL    string
	Args   []any
	Query  bool // true si devuelve filas
	Guard  *Guard
	Unless *Statement
}

// ResultKind distingue lecturas de escrituras sin inspeccionar el contenido.
type ResultKind string

const (
	ResultRows     ResultKind = "rows"
	ResultAffected ResultKind = "affected"
)

// Row fila como mapa columna -> valor. El orden está en ExecutionResult.Columns.
type Row map[string]any

// RowFlags banderas de dominio calculadas para una fila.
// LowStock es nil cuando la fila no tiene forma de producto.
type RowFlags struct {
	LowStock *bool `json:"is_low_stock,omitempty"`
}

// ExecutionResult resultado de ejecutar una sentencia o un lote.
type ExecutionResult struct {
	Kind         ResultKind `json:"kind"`
	Columns      []string   `json:"columns,omitempty"`
	Rows         []Row      `json:"rows,omitempty"`
	RowsAffected int64      `json:"affected_count"`
	Flags        []RowFlags `json:"domain_flags,omitempty"`
}
