package bodega_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/bodega-agent/internal/application/bodega"
	"github.com/jhoicas/bodega-agent/internal/domain"
	"github.com/jhoicas/bodega-agent/internal/domain/entity"
	"github.com/jhoicas/bodega-agent/internal/domain/inventory"
	"github.com/jhoicas/bodega-agent/internal/infrastructure/sqlstore"
	"github.com/jhoicas/bodega-agent/pkg/config"
)

// recordingExecutor registra lo que recibe y devuelve una respuesta fija.
type recordingExecutor struct {
	calls  int
	batch  []entity.Statement
	conn   entity.ConnectionDescriptor
	result *entity.ExecutionResult
	err    error
}

func (r *recordingExecutor) Execute(_ context.Context, batch []entity.Statement, conn entity.ConnectionDescriptor) (*entity.ExecutionResult, error) {
	r.calls++
	r.batch = batch
	r.conn = conn
	if r.err != nil {
		return nil, r.err
	}
	if r.result != nil {
		return r.result, nil
	}
	return &entity.ExecutionResult{Kind: entity.ResultRows, Rows: []entity.Row{}}, nil
}

type staticGenerator struct{ text string }

func (g staticGenerator) Generate(context.Context, string) (string, error) { return g.text, nil }

func newRouter(exec *recordingExecutor, cfg bodega.RouterConfig) *bodega.Router {
	return bodega.NewRouter(bodega.NewClassifier(), bodega.NewTranslator(bodega.TranslatorConfig{}, staticGenerator{text: "SELECT 42"}), exec, cfg)
}

func TestHandle_DescriptorPorDefecto(t *testing.T) {
	exec := &recordingExecutor{}
	r := newRouter(exec, bodega.RouterConfig{})

	resp, err := r.Handle(context.Background(), "Ver inventario completo", entity.ConnectionDescriptor{})

	require.NoError(t, err)
	assert.Equal(t, entity.ConnectionDescriptor{BackendKind: "mysql", DatabaseName: "bodega_inventory"}, exec.conn)
	assert.Equal(t, exec.conn, resp.Connection)
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, entity.IntentListInventory, resp.Intent)
	assert.Equal(t, []string{"SELECT * FROM products WHERE stock_current > 0"}, resp.Statements)
}

func TestHandle_DescriptorDelLlamador(t *testing.T) {
	exec := &recordingExecutor{}
	r := newRouter(exec, bodega.RouterConfig{Defaults: entity.ConnectionDescriptor{BackendKind: "sqlite", DatabaseName: "local"}})

	_, err := r.Handle(context.Background(), "stock bajo", entity.ConnectionDescriptor{BackendKind: " Postgres ", DatabaseName: "bodega"})

	require.NoError(t, err)
	assert.Equal(t, entity.ConnectionDescriptor{BackendKind: "postgres", DatabaseName: "bodega"}, exec.conn)
}

func TestHandle_PromptVacioEsAmbiguo(t *testing.T) {
	exec := &recordingExecutor{}
	r := newRouter(exec, bodega.RouterConfig{})

	_, err := r.Handle(context.Background(), "   ", entity.ConnectionDescriptor{})

	assert.ErrorIs(t, err, domain.ErrClassificationAmbiguous)
	assert.Equal(t, 0, exec.calls)
}

func TestHandle_PoliticasParaPromptsSinRegla(t *testing.T) {
	prompt := "SELECT code FROM products ORDER BY code"

	exec := &recordingExecutor{}
	resp, err := newRouter(exec, bodega.RouterConfig{}).Handle(context.Background(), prompt, entity.ConnectionDescriptor{})
	require.NoError(t, err)
	assert.Equal(t, entity.IntentRawPassthrough, resp.Intent)
	assert.Equal(t, prompt, exec.batch[0].SQL, "passthrough ejecuta el texto tal cual")

	exec = &recordingExecutor{}
	_, err = newRouter(exec, bodega.RouterConfig{Unmatched: bodega.UnmatchedReject}).Handle(context.Background(), prompt, entity.ConnectionDescriptor{})
	assert.Equal(t, domain.KindClassificationAmbiguous, domain.KindOf(err))
	assert.Equal(t, 0, exec.calls)

	exec = &recordingExecutor{}
	_, err = newRouter(exec, bodega.RouterConfig{Unmatched: bodega.UnmatchedProvider}).Handle(context.Background(), prompt, entity.ConnectionDescriptor{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 42", exec.batch[0].SQL)
}

func TestHandle_ErrorDeTraduccionNoEjecuta(t *testing.T) {
	exec := &recordingExecutor{}
	r := newRouter(exec, bodega.RouterConfig{})

	_, err := r.Handle(context.Background(), "Registrar salida de producto: Código: A, Cantidad: muchas", entity.ConnectionDescriptor{})

	assert.Equal(t, domain.KindTranslation, domain.KindOf(err))
	assert.Equal(t, 0, exec.calls)
}

func TestHandle_ErroresDelEjecutorSinCambios(t *testing.T) {
	typed := domain.StatementError(domain.KindExecution, 1, "Buscar producto", errors.New("syntax error"))
	exec := &recordingExecutor{err: typed}
	r := newRouter(exec, bodega.RouterConfig{})

	_, err := r.Handle(context.Background(), "Buscar producto", entity.ConnectionDescriptor{})
	assert.Same(t, typed, err)

	exec.err = errors.New("driver: bad connection")
	_, err = r.Handle(context.Background(), "Buscar producto", entity.ConnectionDescriptor{})
	assert.Equal(t, domain.KindExecution, domain.KindOf(err), "errores sin tipo se envuelven")

	exec.err = context.DeadlineExceeded
	_, err = r.Handle(context.Background(), "Buscar producto", entity.ConnectionDescriptor{})
	assert.Equal(t, domain.KindTimeout, domain.KindOf(err))
}

func TestHandle_AnotaStockBajo(t *testing.T) {
	exec := &recordingExecutor{result: &entity.ExecutionResult{
		Kind:    entity.ResultRows,
		Columns: []string{"code", "stock_current", "stock_minimum"},
		Rows:    []entity.Row{{"code": "A", "stock_current": int64(2), "stock_minimum": int64(5)}},
	}}
	r := newRouter(exec, bodega.RouterConfig{})

	resp, err := r.Handle(context.Background(), "stock bajo", entity.ConnectionDescriptor{})

	require.NoError(t, err)
	require.Len(t, resp.Result.Flags, 1)
	require.NotNil(t, resp.Result.Flags[0].LowStock)
	assert.True(t, *resp.Result.Flags[0].LowStock)
	assert.Nil(t, exec.result.Flags, "el resultado del ejecutor no se modifica")
}

// ---- Escenarios contra sqlite en memoria ----

var memory = entity.ConnectionDescriptor{BackendKind: entity.BackendSQLite, DatabaseName: sqlstore.MemoryDatabase}

type fixture struct {
	router *bodega.Router
	store  *sqlstore.Executor
	conn   entity.ConnectionDescriptor
}

func newFixture(t *testing.T, policy bodega.MissingProductPolicy) *fixture {
	t.Helper()
	return newFixtureOn(t, policy, config.StoreConfig{}, memory)
}

// newFixtureOn prepara el esquema y los datos iniciales en la conexión indicada.
func newFixtureOn(t *testing.T, policy bodega.MissingProductPolicy, cfg config.StoreConfig, conn entity.ConnectionDescriptor) *fixture {
	t.Helper()
	store := sqlstore.NewExecutor(cfg)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx, conn))

	seed := []entity.Statement{
		{SQL: `INSERT INTO products (code, name, stock_current, stock_minimum) VALUES (?, ?, ?, ?)`, Args: []any{"A", "Tornillo", int64(2), int64(5)}},
		{SQL: `INSERT INTO products (code, name, stock_current, stock_minimum) VALUES (?, ?, ?, ?)`, Args: []any{"B", "Tuerca", int64(10), int64(3)}},
		{SQL: `INSERT INTO products (code, name, stock_current, stock_minimum) VALUES (?, ?, ?, ?)`, Args: []any{"C", "Clavo", int64(0), int64(0)}},
		{SQL: `INSERT INTO movements (product_reference, kind, quantity, reason) VALUES (?, ?, ?, ?)`, Args: []any{"A", "entry", int64(2), "inicial"}},
		{SQL: `INSERT INTO movements (product_reference, kind, quantity, reason) VALUES (?, ?, ?, ?)`, Args: []any{"B", "entry", int64(10), "inicial"}},
	}
	_, err := store.Execute(ctx, seed, conn)
	require.NoError(t, err)

	router := bodega.NewRouter(
		bodega.NewClassifier(),
		bodega.NewTranslator(bodega.TranslatorConfig{MissingProduct: policy}, nil),
		store,
		bodega.RouterConfig{Defaults: conn},
	)
	return &fixture{router: router, store: store, conn: conn}
}

func (f *fixture) stock(t *testing.T, code string) int64 {
	t.Helper()
	res, err := f.store.Execute(context.Background(), []entity.Statement{
		{SQL: `SELECT stock_current FROM products WHERE code = ?`, Args: []any{code}, Query: true},
	}, f.conn)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	return res.Rows[0]["stock_current"].(int64)
}

func (f *fixture) movements(t *testing.T, code string) []entity.Movement {
	t.Helper()
	res, err := f.store.Execute(context.Background(), []entity.Statement{
		{SQL: `SELECT product_reference, kind, quantity FROM movements WHERE product_reference = ? ORDER BY id`, Args: []any{code}, Query: true},
	}, f.conn)
	require.NoError(t, err)
	out := make([]entity.Movement, 0, len(res.Rows))
	for _, row := range res.Rows {
		out = append(out, entity.Movement{
			ProductReference: row["product_reference"].(string),
			Kind:             entity.MovementKind(row["kind"].(string)),
			Quantity:         row["quantity"].(int64),
		})
	}
	return out
}

func (f *fixture) ledgerSum(t *testing.T, code string) int64 {
	t.Helper()
	var sum int64
	for _, m := range f.movements(t, code) {
		sum += m.Signed()
	}
	return sum
}

func codes(rows []entity.Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r["code"].(string))
	}
	return out
}

func TestEscenario_VerInventarioCompleto(t *testing.T) {
	f := newFixture(t, bodega.MissingProductReject)

	resp, err := f.router.Handle(context.Background(), "Ver inventario completo", entity.ConnectionDescriptor{})

	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT * FROM products WHERE stock_current > 0"}, resp.Statements)
	assert.Equal(t, entity.ResultRows, resp.Result.Kind)
	assert.ElementsMatch(t, []string{"A", "B"}, codes(resp.Result.Rows), "C tiene stock 0")
}

func TestEscenario_StockBajo(t *testing.T) {
	f := newFixture(t, bodega.MissingProductReject)

	resp, err := f.router.Handle(context.Background(), "stock bajo", entity.ConnectionDescriptor{})

	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, codes(resp.Result.Rows))
	require.Len(t, resp.Result.Flags, 1)
	require.NotNil(t, resp.Result.Flags[0].LowStock)
	assert.True(t, *resp.Result.Flags[0].LowStock)
}

func TestEscenario_EntradaSumaStockYRegistraMovimiento(t *testing.T) {
	f := newFixture(t, bodega.MissingProductReject)

	resp, err := f.router.Handle(context.Background(),
		"Registrar entrada de producto:\nCódigo: A\nStock: 5\nMotivo: compra", entity.ConnectionDescriptor{})

	require.NoError(t, err)
	assert.Equal(t, entity.IntentRegisterEntry, resp.Intent)
	assert.Equal(t, entity.ResultAffected, resp.Result.Kind)
	assert.Equal(t, int64(7), f.stock(t, "A"))

	movs := f.movements(t, "A")
	require.Len(t, movs, 2)
	assert.Equal(t, entity.Movement{ProductReference: "A", Kind: entity.MovementEntry, Quantity: 5}, movs[1])
}

func TestEscenario_SalidaExcesivaSeRechazaSinCambios(t *testing.T) {
	f := newFixture(t, bodega.MissingProductReject)
	_, err := f.router.Handle(context.Background(), "Registrar entrada de producto: Código: A, Cantidad: 5", entity.ConnectionDescriptor{})
	require.NoError(t, err)
	require.Equal(t, int64(7), f.stock(t, "A"))
	before := f.movements(t, "A")

	_, err = f.router.Handle(context.Background(), "Registrar salida de producto: Código: A, Cantidad: 100, Motivo: venta", entity.ConnectionDescriptor{})

	assert.ErrorIs(t, err, domain.ErrDomainViolation)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int64(7), f.stock(t, "A"))
	assert.Equal(t, before, f.movements(t, "A"), "no se crea movimiento")
}

func TestEscenario_BackendNoSoportado(t *testing.T) {
	f := newFixture(t, bodega.MissingProductReject)

	_, err := f.router.Handle(context.Background(), "Registrar entrada de producto: Código: A, Cantidad: 5",
		entity.ConnectionDescriptor{BackendKind: "oracle", DatabaseName: "bodega_inventory"})

	assert.Equal(t, domain.KindConnection, domain.KindOf(err))
	assert.Equal(t, int64(2), f.stock(t, "A"), "no se ejecutó ninguna sentencia")
}

func TestEscenario_EntradaDeProductoInexistente(t *testing.T) {
	f := newFixture(t, bodega.MissingProductReject)
	_, err := f.router.Handle(context.Background(), "Registrar entrada de producto: Código: Z, Cantidad: 5", entity.ConnectionDescriptor{})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Empty(t, f.movements(t, "Z"))

	f = newFixture(t, bodega.MissingProductCreate)
	_, err = f.router.Handle(context.Background(),
		"Registrar entrada de producto:\nCódigo: Z\nNombre: Arandela\nPrecio: 0.75\nStock: 5\nStock mínimo: 8", entity.ConnectionDescriptor{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), f.stock(t, "Z"))

	res, err := f.store.Execute(context.Background(), []entity.Statement{
		{SQL: `SELECT * FROM products WHERE code = ?`, Args: []any{"Z"}, Query: true},
	}, f.conn)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	product, err := inventory.ProductFromRow(res.Rows[0])
	require.NoError(t, err)
	assert.Equal(t, "Arandela", product.Name)
	assert.True(t, decimal.RequireFromString("0.75").Equal(product.Price))
	assert.Equal(t, int64(8), product.StockMinimum)

	resp, err := f.router.Handle(context.Background(), "stock bajo", entity.ConnectionDescriptor{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "Z"}, codes(resp.Result.Rows))
}

func TestEscenario_SalidaDeProductoInexistente(t *testing.T) {
	f := newFixture(t, bodega.MissingProductReject)

	_, err := f.router.Handle(context.Background(), "Registrar salida de producto: Código: NOPE, Cantidad: 1", entity.ConnectionDescriptor{})

	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	assert.Equal(t, domain.KindDomainViolation, domain.KindOf(err))
}

func TestInvariante_StockIgualASumaDeMovimientos(t *testing.T) {
	f := newFixture(t, bodega.MissingProductReject)
	ctx := context.Background()
	prompts := []string{
		"Registrar entrada de producto: Código: A, Cantidad: 5",
		"Registrar salida de producto: Código: A, Cantidad: 3",
		"Registrar salida de producto: Código: A, Cantidad: 50",
		"Registrar salida de producto: Código: B, Cantidad: 10",
		"Registrar salida de producto: Código: B, Cantidad: 1",
		"Registrar entrada de producto: Código: B, Cantidad: 4",
		"Registrar salida de producto: Código: A, Cantidad: 4",
	}
	for _, p := range prompts {
		_, _ = f.router.Handle(ctx, p, entity.ConnectionDescriptor{})
	}

	for _, code := range []string{"A", "B"} {
		stock := f.stock(t, code)
		assert.Equal(t, f.ledgerSum(t, code), stock, "producto %s", code)
		assert.GreaterOrEqual(t, stock, int64(0))
	}
	assert.Equal(t, int64(0), f.stock(t, "A"))
	assert.Equal(t, int64(4), f.stock(t, "B"))
}

func TestEscenario_ReporteDeMovimientos(t *testing.T) {
	f := newFixture(t, bodega.MissingProductReject)

	resp, err := f.router.Handle(context.Background(), "Generar reporte de movimientos", entity.ConnectionDescriptor{})

	require.NoError(t, err)
	assert.Equal(t, entity.IntentGenerateReport, resp.Intent)
	assert.Len(t, resp.Result.Rows, 2)
	assert.Equal(t, []string{"product_reference", "name", "kind", "quantity", "reason", "timestamp"}, resp.Result.Columns)
	for _, flag := range resp.Result.Flags {
		assert.Nil(t, flag.LowStock, "las filas de movimientos no tienen forma de producto")
	}
}

func TestEscenario_PassthroughFallidoEsErrorDeEjecucion(t *testing.T) {
	f := newFixture(t, bodega.MissingProductReject)

	_, err := f.router.Handle(context.Background(), "Buscar producto con código A", entity.ConnectionDescriptor{})

	var pe *domain.PipelineError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, domain.KindExecution, pe.Kind)
	assert.Equal(t, "Buscar producto con código A", pe.Statement)
}

func TestEscenario_FormularioConCodigoVacioEsErrorDeTraduccion(t *testing.T) {
	f := newFixture(t, bodega.MissingProductCreate)
	form := "Registrar entrada de producto:\nCódigo: \nNombre: Arandela\nStock: 5\nStock mínimo: \nUbicación: B1"

	_, err := f.router.Handle(context.Background(), form, entity.ConnectionDescriptor{})

	assert.ErrorIs(t, err, domain.ErrTranslation)
	assert.Equal(t, domain.KindTranslation, domain.KindOf(err))

	res, err := f.store.Execute(context.Background(), []entity.Statement{
		{SQL: `SELECT code FROM products ORDER BY code`, Query: true},
	}, f.conn)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, codes(res.Rows), "no se crea ningún producto")
}

func TestEscenario_PassthroughQueMencionaElEsquemaSeEjecutaTalCual(t *testing.T) {
	f := newFixture(t, bodega.MissingProductReject)
	ctx := context.Background()

	resp, err := f.router.Handle(ctx, "SELECT * FROM movements WHERE kind = 'exit'", entity.ConnectionDescriptor{})
	require.NoError(t, err)
	assert.Equal(t, entity.IntentRawPassthrough, resp.Intent)
	assert.Empty(t, resp.Result.Rows)

	resp, err = f.router.Handle(ctx, "SELECT * FROM movements WHERE kind = 'entry'", entity.ConnectionDescriptor{})
	require.NoError(t, err)
	assert.Equal(t, entity.IntentRawPassthrough, resp.Intent)
	assert.Len(t, resp.Result.Rows, 2)

	exec := &recordingExecutor{}
	prompt := "SELECT * FROM bodega_inventory.products WHERE code = 'A'"
	resp, err = newRouter(exec, bodega.RouterConfig{}).Handle(ctx, prompt, entity.ConnectionDescriptor{})
	require.NoError(t, err)
	assert.Equal(t, entity.IntentRawPassthrough, resp.Intent)
	assert.Equal(t, prompt, exec.batch[0].SQL)
}

func TestEscenario_PassthroughConReturningDevuelveFilas(t *testing.T) {
	f := newFixture(t, bodega.MissingProductReject)

	resp, err := f.router.Handle(context.Background(),
		"-- reubicar\nUPDATE products SET location = 'B2' WHERE code = 'A' RETURNING code, location", entity.ConnectionDescriptor{})

	require.NoError(t, err)
	assert.Equal(t, entity.ResultRows, resp.Result.Kind)
	require.Len(t, resp.Result.Rows, 1)
	assert.Equal(t, "B2", resp.Result.Rows[0]["location"])
}

func TestHandle_ErrorLlevaRequestID(t *testing.T) {
	exec := &recordingExecutor{err: domain.NewError(domain.KindConnection, "sin conexión", nil)}
	r := newRouter(exec, bodega.RouterConfig{})

	_, err := r.Handle(context.Background(), "Ver inventario completo", entity.ConnectionDescriptor{})

	var pe *domain.PipelineError
	require.True(t, errors.As(err, &pe))
	assert.NotEmpty(t, pe.RequestID)
	assert.NotContains(t, pe.Error(), pe.RequestID)

	_, err = r.Handle(context.Background(), "", entity.ConnectionDescriptor{})
	require.True(t, errors.As(err, &pe))
	assert.NotEmpty(t, pe.RequestID, "también en errores previos a la ejecución")
}

func TestInvariante_SalidasConcurrentesNoDejanStockNegativo(t *testing.T) {
	conn := entity.ConnectionDescriptor{BackendKind: entity.BackendSQLite, DatabaseName: "bodega_concurrencia"}
	cfg := config.StoreConfig{SQLite: config.FileStoreConfig{Dir: t.TempDir()}}
	f := newFixtureOn(t, bodega.MissingProductReject, cfg, conn)
	require.Equal(t, int64(10), f.stock(t, "B"))

	const calls = 8 // 8 salidas de 3 sobre un stock de 10: solo 3 caben
	errs := make([]error, calls)
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.router.Handle(context.Background(),
				"Registrar salida de producto: Código: B, Cantidad: 3, Motivo: venta", entity.ConnectionDescriptor{})
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientStock):
			rejected++
		default:
			t.Errorf("error inesperado: %v", err)
		}
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, calls-3, rejected)

	stock := f.stock(t, "B")
	assert.Equal(t, int64(1), stock)
	assert.Equal(t, f.ledgerSum(t, "B"), stock)
	assert.Len(t, f.movements(t, "B"), 1+ok)
}
