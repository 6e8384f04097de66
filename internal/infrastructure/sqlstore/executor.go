package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jhoicas/bodega-agent/internal/application/ports"
	"github.com/jhoicas/bodega-agent/internal/domain"
	"github.com/jhoicas/bodega-agent/internal/domain/entity"
	"github.com/jhoicas/bodega-agent/internal/observability"
	"github.com/jhoicas/bodega-agent/pkg/config"
	"github.com/jhoicas/bodega-agent/pkg/logger"
)

var _ ports.StatementExecutor = (*Executor)(nil)

// Opener abre la conexión de un backend. release puede ser nil.
type Opener func(ctx context.Context, b Backend, database string) (db *sql.DB, release func(), err error)

// Option configura el Executor.
type Option func(*Executor)

// WithOpener reemplaza la apertura de conexiones (tests con sqlmock).
func WithOpener(o Opener) Option {
	return func(e *Executor) { e.open = o }
}

// WithLogger asigna el logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

type handle struct {
	db      *sql.DB
	release func()
}

// querier lo que comparten *sql.DB y *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Executor ejecuta sentencias contra el almacén indicado por el descriptor.
// Mantiene una conexión por descriptor; es seguro para uso concurrente.
type Executor struct {
	cfg  config.StoreConfig
	open Opener
	log  *logger.Logger

	mu      sync.RWMutex
	handles map[entity.ConnectionDescriptor]*handle
	group   singleflight.Group
}

// NewExecutor construye el ejecutor. Las conexiones se abren en el primer uso.
func NewExecutor(cfg config.StoreConfig, opts ...Option) *Executor {
	e := &Executor{
		cfg:     cfg,
		log:     logger.Nop(),
		handles: make(map[entity.ConnectionDescriptor]*handle),
	}
	e.open = func(ctx context.Context, b Backend, database string) (*sql.DB, func(), error) {
		return b.open(ctx, e.cfg, database)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute ejecuta el lote. Una sola sentencia sin guard ni Unless va directa;
// cualquier otro lote corre en una transacción y se revierte entero ante el primer fallo.
func (e *Executor) Execute(ctx context.Context, batch []entity.Statement, conn entity.ConnectionDescriptor) (*entity.ExecutionResult, error) {
	backend, ok := LookupBackend(conn.BackendKind)
	if !ok {
		return nil, domain.NewError(domain.KindConnection,
			fmt.Sprintf("backend no soportado %q (soportados: %s)", conn.BackendKind, strings.Join(SupportedBackends(), ", ")), nil)
	}
	if len(batch) == 0 {
		return nil, domain.NewError(domain.KindExecution, "lote vacío", nil)
	}
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	db, err := e.conn(ctx, backend, conn.DatabaseName)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, domain.NewError(domain.KindTimeout, "el almacén no respondió a tiempo", err)
		}
		var pe *domain.PipelineError
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, domain.NewError(domain.KindConnection,
			fmt.Sprintf("no se pudo conectar a %s/%s", backend.Kind, conn.DatabaseName), err)
	}

	b := &batchRun{backend: backend, result: &entity.ExecutionResult{Kind: entity.ResultRows}}
	if len(batch) == 1 && batch[0].Guard == nil && batch[0].Unless == nil {
		err = b.run(ctx, db, 1, batch[0])
	} else {
		err = NewTxRunner(db).Run(ctx, func(tx *sql.Tx) error {
			for i, st := range batch {
				if err := b.run(ctx, tx, i+1, st); err != nil {
					return err
				}
			}
			return nil
		})
	}
	observability.ObserveStatements(backend.Kind, b.executed)
	if err != nil {
		return nil, e.failure(ctx, backend, len(batch), err)
	}
	return b.result, nil
}

func (e *Executor) failure(ctx context.Context, backend Backend, size int, err error) error {
	var pe *domain.PipelineError
	if !errors.As(err, &pe) {
		kind := domain.KindExecution
		if isTimeout(ctx, err) {
			kind = domain.KindTimeout
		}
		msg := "no se pudo iniciar la transacción"
		if errors.Is(err, errCommit) {
			msg = "no se pudo confirmar la transacción"
		}
		pe = domain.NewError(kind, msg, err)
	}
	if size > 1 || pe.Kind == domain.KindDomainViolation {
		observability.IncrementRollback(backend.Kind, string(pe.Kind))
		e.log.Warn().
			Str("backend", backend.Kind).
			Str("error_kind", string(pe.Kind)).
			Int("position", pe.Position).
			Err(pe.Err).
			Msg("lote revertido")
	}
	return pe
}

// batchRun acumula el resultado de un lote.
type batchRun struct {
	backend  Backend
	result   *entity.ExecutionResult
	wrote    bool
	executed int
}

func (b *batchRun) run(ctx context.Context, q querier, pos int, st entity.Statement) error {
	if st.Unless != nil {
		found, err := b.probe(ctx, q, *st.Unless)
		if err != nil {
			return statementFailure(ctx, pos, st.Unless.SQL, err)
		}
		if found {
			return nil
		}
	}

	query := st.SQL
	if len(st.Args) > 0 {
		query = b.backend.Rebind(st.SQL)
	}
	b.executed++

	if st.Query {
		cols, rows, err := readRows(ctx, q, query, st.Args)
		if err != nil {
			return statementFailure(ctx, pos, st.SQL, err)
		}
		if st.Guard != nil && int64(len(rows)) < st.Guard.MinRows {
			return guardFailure(pos, st.SQL, st.Guard.Violation)
		}
		if !b.wrote {
			b.result.Kind = entity.ResultRows
			b.result.Columns = cols
			b.result.Rows = rows
		}
		return nil
	}

	res, err := q.ExecContext(ctx, query, st.Args...)
	if err != nil {
		return statementFailure(ctx, pos, st.SQL, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return statementFailure(ctx, pos, st.SQL, err)
	}
	if st.Guard != nil && affected < st.Guard.MinRows {
		return guardFailure(pos, st.SQL, st.Guard.Violation)
	}
	// Con al menos una escritura el resultado del lote es el total de filas afectadas.
	b.wrote = true
	b.result.Kind = entity.ResultAffected
	b.result.Columns = nil
	b.result.Rows = nil
	b.result.RowsAffected += affected
	return nil
}

func (b *batchRun) probe(ctx context.Context, q querier, st entity.Statement) (bool, error) {
	query := st.SQL
	if len(st.Args) > 0 {
		query = b.backend.Rebind(st.SQL)
	}
	rows, err := q.QueryContext(ctx, query, st.Args...)
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()
	found := rows.Next()
	return found, rows.Err()
}

func readRows(ctx context.Context, q querier, query string, args []any) ([]string, []entity.Row, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("query columns: %w", err)
	}
	out := make([]entity.Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(entity.Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, out, nil
}

func normalizeValue(value any) any {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return value
}

// conn devuelve la conexión cacheada del descriptor o la abre una sola vez.
func (e *Executor) conn(ctx context.Context, backend Backend, database string) (*sql.DB, error) {
	if err := validDatabaseName(database); err != nil {
		return nil, domain.NewError(domain.KindConnection, err.Error(), nil)
	}
	key := entity.ConnectionDescriptor{BackendKind: backend.Kind, DatabaseName: database}

	e.mu.RLock()
	h, ok := e.handles[key]
	e.mu.RUnlock()
	if ok {
		return h.db, nil
	}

	v, err, _ := e.group.Do(backend.Kind+"/"+database, func() (any, error) {
		e.mu.RLock()
		h, ok := e.handles[key]
		e.mu.RUnlock()
		if ok {
			return h.db, nil
		}
		db, release, err := e.open(ctx, backend, database)
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.handles[key] = &handle{db: db, release: release}
		n := len(e.handles)
		e.mu.Unlock()
		observability.SetOpenConnections(n)
		e.log.Info().Str("backend", backend.Kind).Str("database", database).Msg("conexión abierta")
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*sql.DB), nil
}

// Close cierra todas las conexiones abiertas.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var errs []error
	for key, h := range e.handles {
		if err := h.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cerrar %s/%s: %w", key.BackendKind, key.DatabaseName, err))
		}
		if h.release != nil {
			h.release()
		}
		delete(e.handles, key)
	}
	observability.SetOpenConnections(0)
	return errors.Join(errs...)
}
