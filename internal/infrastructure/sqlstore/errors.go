package sqlstore

import (
	"context"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/marcboeker/go-duckdb/v2"
	"github.com/mattn/go-sqlite3"

	"github.com/jhoicas/bodega-agent/internal/domain"
)

// constraint tipo de restricción violada según el driver.
type constraint string

const (
	constraintNone       constraint = ""
	constraintForeignKey constraint = "foreign_key"
	constraintCheck      constraint = "check"
	constraintUnique     constraint = "unique"
)

// constraintOf reconoce violaciones de restricción en los cuatro drivers.
func constraintOf(err error) constraint {
	if err == nil {
		return constraintNone
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503": // foreign_key_violation
			return constraintForeignKey
		case "23514": // check_violation
			return constraintCheck
		case "23505": // unique_violation
			return constraintUnique
		}
		return constraintNone
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1451, 1452:
			return constraintForeignKey
		case 3819:
			return constraintCheck
		case 1062:
			return constraintUnique
		}
		return constraintNone
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintForeignKey:
			return constraintForeignKey
		case sqlite3.ErrConstraintCheck:
			return constraintCheck
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return constraintUnique
		}
		if liteErr.Code == sqlite3.ErrConstraint {
			msg := strings.ToUpper(liteErr.Error())
			switch {
			case strings.Contains(msg, "FOREIGN KEY"):
				return constraintForeignKey
			case strings.Contains(msg, "CHECK"):
				return constraintCheck
			}
		}
		return constraintNone
	}
	var duckErr *duckdb.Error
	if errors.As(err, &duckErr) && duckErr.Type == duckdb.ErrorTypeConstraint {
		msg := strings.ToLower(duckErr.Msg)
		switch {
		case strings.Contains(msg, "foreign key"):
			return constraintForeignKey
		case strings.Contains(msg, "check"):
			return constraintCheck
		default:
			return constraintUnique
		}
	}
	return constraintNone
}

// isTimeout true si el error o el contexto indican plazo agotado.
func isTimeout(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// statementFailure clasifica el error de la sentencia en la posición pos (1-based).
func statementFailure(ctx context.Context, pos int, sqlText string, err error) *domain.PipelineError {
	switch {
	case isTimeout(ctx, err):
		return domain.StatementError(domain.KindTimeout, pos, sqlText, err)
	case constraintOf(err) == constraintForeignKey || constraintOf(err) == constraintCheck:
		return domain.StatementError(domain.KindDomainViolation, pos, sqlText, err)
	}
	return domain.StatementError(domain.KindExecution, pos, sqlText, err)
}

// guardFailure error de un guard no cumplido: la causa es la violación declarada.
func guardFailure(pos int, sqlText string, violation error) *domain.PipelineError {
	if violation == nil {
		violation = domain.ErrDomainViolation
	}
	return &domain.PipelineError{
		Kind:      domain.KindDomainViolation,
		Message:   violation.Error(),
		Statement: sqlText,
		Position:  pos,
		Err:       violation,
	}
}
