package bodega

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/bodega-agent/internal/application/ports"
	"github.com/jhoicas/bodega-agent/internal/domain"
	"github.com/jhoicas/bodega-agent/internal/domain/entity"
)

// MissingProductPolicy qué hacer cuando una entrada referencia un producto inexistente.
type MissingProductPolicy string

const (
	MissingProductReject MissingProductPolicy = "reject"
	MissingProductCreate MissingProductPolicy = "create"
)

// Sentencias fijas. El texto SQL de cada intent es constante; solo cambian los argumentos.
const (
	listInventorySQL = `SELECT * FROM products WHERE stock_current > 0`
	lowStockSQL      = `SELECT * FROM products WHERE stock_current < stock_minimum`

	reportSQL = `SELECT m.product_reference, p.name, m.kind, m.quantity, m.reason, m.timestamp
FROM movements m JOIN products p ON p.code = m.product_reference
ORDER BY m.timestamp DESC`
	reportByProductSQL = `SELECT m.product_reference, p.name, m.kind, m.quantity, m.reason, m.timestamp
FROM movements m JOIN products p ON p.code = m.product_reference
WHERE m.product_reference = ?
ORDER BY m.timestamp DESC`

	productExistsSQL = `SELECT code FROM products WHERE code = ?`
	createProductSQL = `INSERT INTO products (code, name, description, category, price, stock_current, stock_minimum, location, created_at)
VALUES (?, ?, ?, ?, ?, 0, ?, ?, CURRENT_TIMESTAMP)`
	addStockSQL = `UPDATE products SET stock_current = stock_current + ? WHERE code = ?`
	// La condición stock_current >= ? es el guard de no negatividad: la fila solo cambia si alcanza el stock.
	subtractStockSQL = `UPDATE products SET stock_current = stock_current - ? WHERE code = ? AND stock_current >= ?`
	insertMovementSQL = `INSERT INTO movements (product_reference, kind, quantity, reason, timestamp)
VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`
)

const freeTextPrompt = `Convierte la petición de inventario en UNA sola sentencia SQL.
Tablas:
  products(code, name, description, category, price, stock_current, stock_minimum, location, created_at)
  movements(product_reference, kind, quantity, reason, timestamp)  -- kind: 'entry' | 'exit'
Devuelve ÚNICAMENTE el SQL, sin markdown ni explicación.

Petición:
%s`

// TranslatorConfig opciones del traductor.
type TranslatorConfig struct {
	MissingProduct  MissingProductPolicy
	ProviderTimeout time.Duration
}

// Translator convierte un Intent con sus campos en sentencias SQL.
// Los intents fijos nunca consultan al proveedor; Generator solo se usa en TranslateFreeText.
type Translator struct {
	cfg       TranslatorConfig
	generator ports.TextGenerator
}

// NewTranslator construye el traductor. generator puede ser nil si no hay proveedor configurado.
func NewTranslator(cfg TranslatorConfig, generator ports.TextGenerator) *Translator {
	if cfg.MissingProduct == "" {
		cfg.MissingProduct = MissingProductReject
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 10 * time.Second
	}
	return &Translator{cfg: cfg, generator: generator}
}

// Translate devuelve el lote de sentencias para un intent fijo.
// register_entry/register_exit producen un lote que debe ejecutarse de forma atómica.
func (t *Translator) Translate(intent entity.Intent, fields entity.Fields) ([]entity.Statement, error) {
	switch intent {
	case entity.IntentListInventory:
		return []entity.Statement{{SQL: listInventorySQL, Query: true}}, nil
	case entity.IntentLowStockQuery:
		return []entity.Statement{{SQL: lowStockSQL, Query: true}}, nil
	case entity.IntentGenerateReport:
		if code := strings.TrimSpace(fields.Code); code != "" {
			return []entity.Statement{{SQL: reportByProductSQL, Args: []any{code}, Query: true}}, nil
		}
		return []entity.Statement{{SQL: reportSQL, Query: true}}, nil
	case entity.IntentRegisterEntry:
		return t.entry(fields)
	case entity.IntentRegisterExit:
		return t.exit(fields)
	case entity.IntentRawPassthrough:
		return nil, domain.NewError(domain.KindTranslation, "raw_passthrough no tiene traducción fija", nil)
	}
	return nil, domain.NewError(domain.KindTranslation, fmt.Sprintf("intent desconocido %q", intent), nil)
}

// Passthrough devuelve el texto tal cual como única sentencia, sin validar ni reescribir.
// Es un modo de confianza explícito: quien llama garantiza que el texto es SQL válido.
func (t *Translator) Passthrough(text string) []entity.Statement {
	return []entity.Statement{{SQL: text, Query: looksLikeQuery(text)}}
}

func (t *Translator) entry(fields entity.Fields) ([]entity.Statement, error) {
	code, qty, err := movementArgs(fields)
	if err != nil {
		return nil, err
	}
	// Los atributos del producto se validan siempre, aunque solo se usen al crearlo.
	create, err := createProductStatement(code, fields)
	if err != nil {
		return nil, err
	}
	batch := make([]entity.Statement, 0, 3)
	if t.cfg.MissingProduct == MissingProductCreate {
		batch = append(batch, create)
	}
	batch = append(batch,
		entity.Statement{
			SQL:   addStockSQL,
			Args:  []any{qty, code},
			Guard: &entity.Guard{MinRows: 1, Violation: domain.ErrProductNotFound},
		},
		movementStatement(code, entity.MovementEntry, qty, fields.Reason),
	)
	return batch, nil
}

func (t *Translator) exit(fields entity.Fields) ([]entity.Statement, error) {
	code, qty, err := movementArgs(fields)
	if err != nil {
		return nil, err
	}
	return []entity.Statement{
		{
			SQL:   productExistsSQL,
			Args:  []any{code},
			Query: true,
			Guard: &entity.Guard{MinRows: 1, Violation: domain.ErrProductNotFound},
		},
		{
			SQL:   subtractStockSQL,
			Args:  []any{qty, code, qty},
			Guard: &entity.Guard{MinRows: 1, Violation: domain.ErrInsufficientStock},
		},
		movementStatement(code, entity.MovementExit, qty, fields.Reason),
	}, nil
}

func movementStatement(code string, kind entity.MovementKind, qty int64, reason string) entity.Statement {
	return entity.Statement{
		SQL:  insertMovementSQL,
		Args: []any{code, string(kind), qty, strings.TrimSpace(reason)},
	}
}

// createProductStatement inserta el producto solo si no existe (Unless), con stock inicial 0.
func createProductStatement(code string, fields entity.Fields) (entity.Statement, error) {
	price := decimal.Zero
	if raw := strings.TrimSpace(fields.Price); raw != "" {
		if strings.Contains(raw, ",") {
			return entity.Statement{}, domain.NewError(domain.KindTranslation,
				fmt.Sprintf("precio inválido %q: use punto decimal", raw), nil)
		}
		p, err := decimal.NewFromString(raw)
		if err != nil || p.IsNegative() {
			return entity.Statement{}, domain.NewError(domain.KindTranslation, fmt.Sprintf("precio inválido %q", raw), err)
		}
		price = p
	}
	var minimum int64
	if raw := strings.TrimSpace(fields.Minimum); raw != "" {
		m, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || m < 0 {
			return entity.Statement{}, domain.NewError(domain.KindTranslation, fmt.Sprintf("stock mínimo inválido %q", raw), err)
		}
		minimum = m
	}
	name := strings.TrimSpace(fields.Name)
	if name == "" {
		name = code
	}
	return entity.Statement{
		SQL: createProductSQL,
		Args: []any{
			code, name, strings.TrimSpace(fields.Description), strings.TrimSpace(fields.Category),
			price, minimum, strings.TrimSpace(fields.Location),
		},
		Unless: &entity.Statement{SQL: productExistsSQL, Args: []any{code}, Query: true},
	}, nil
}

// movementArgs valida código y cantidad (entero positivo).
func movementArgs(fields entity.Fields) (string, int64, error) {
	code := strings.TrimSpace(fields.Code)
	if code == "" {
		return "", 0, domain.NewError(domain.KindTranslation, "falta el código del producto", nil)
	}
	raw := strings.TrimSpace(fields.Quantity)
	if raw == "" {
		return "", 0, domain.NewError(domain.KindTranslation, "falta la cantidad", nil)
	}
	qty, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		d, derr := decimal.NewFromString(raw)
		if derr != nil || !d.Equal(d.Truncate(0)) {
			return "", 0, domain.NewError(domain.KindTranslation, fmt.Sprintf("cantidad no numérica %q", raw), err)
		}
		qty = d.IntPart()
	}
	if qty <= 0 {
		return "", 0, domain.NewError(domain.KindTranslation, fmt.Sprintf("la cantidad debe ser positiva, se recibió %d", qty), nil)
	}
	return code, qty, nil
}

// TranslateFreeText pide al proveedor una sentencia SQL para un prompt sin regla fija.
func (t *Translator) TranslateFreeText(ctx context.Context, prompt string) ([]entity.Statement, error) {
	if t.generator == nil {
		return nil, domain.NewError(domain.KindProvider, "no hay proveedor de texto configurado", nil)
	}
	ctx, cancel := context.WithTimeout(ctx, t.cfg.ProviderTimeout)
	defer cancel()

	text, err := t.generator.Generate(ctx, fmt.Sprintf(freeTextPrompt, strings.TrimSpace(prompt)))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, domain.NewError(domain.KindTimeout, "el proveedor de texto no respondió a tiempo", err)
		}
		return nil, domain.NewError(domain.KindProvider, "generación de SQL fallida", err)
	}
	sql := extractSQL(text)
	if sql == "" {
		return nil, domain.NewError(domain.KindProvider, "el proveedor devolvió SQL vacío", nil)
	}
	return []entity.Statement{{SQL: sql, Query: looksLikeQuery(sql)}}, nil
}

// extractSQL quita bloques markdown (```sql ... ```) que algunos modelos añaden.
func extractSQL(text string) string {
	trimmed := strings.TrimSpace(text)
	if idx := strings.Index(trimmed, "```"); idx != -1 {
		after := trimmed[idx+3:]
		after = strings.TrimPrefix(after, "sql")
		after = strings.TrimPrefix(after, "SQL")
		if end := strings.LastIndex(after, "```"); end != -1 {
			after = after[:end]
		}
		trimmed = strings.TrimSpace(after)
	}
	return trimmed
}

// looksLikeQuery decide si una sentencia devuelve filas: por su primera palabra, ignorando
// comentarios iniciales, o por una cláusula RETURNING (postgres, sqlite, duckdb).
func looksLikeQuery(sql string) bool {
	text := quotedLiteralRe.ReplaceAllString(stripLeadingComments(sql), " ")
	words := strings.FieldsFunc(strings.ToUpper(text), func(r rune) bool {
		return !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	if len(words) == 0 {
		return false
	}
	switch words[0] {
	case "SELECT", "WITH", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "PRAGMA", "VALUES", "TABLE":
		return true
	case "INSERT", "UPDATE", "DELETE", "MERGE":
		for _, w := range words[1:] {
			if w == "RETURNING" {
				return true
			}
		}
	}
	return false
}

var quotedLiteralRe = regexp.MustCompile(`'(?:[^']|'')*'`)

// stripLeadingComments quita comentarios "--" y "/* */" y paréntesis al inicio de la sentencia.
func stripLeadingComments(sql string) string {
	for {
		sql = strings.TrimLeft(sql, " \t\r\n(")
		switch {
		case strings.HasPrefix(sql, "--"):
			end := strings.IndexByte(sql, '\n')
			if end == -1 {
				return ""
			}
			sql = sql[end+1:]
		case strings.HasPrefix(sql, "/*"):
			end := strings.Index(sql, "*/")
			if end == -1 {
				return ""
			}
			sql = sql[end+2:]
		default:
			return sql
		}
	}
}
