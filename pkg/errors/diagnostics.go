package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// DatabaseCause is the driver detail behind a failed statement.
type DatabaseCause struct {
	SQLState   string
	Constraint string
	Table      string
	Detail     string
}

// Diagnostics is what gets logged about a failed request. It never reaches
// the client.
type Diagnostics struct {
	Code     Code
	Chain    []string
	Database *DatabaseCause
}

// Diagnose walks the wrap chain of err. Both pgx and lib/pq errors are
// recognised since migrations run over database/sql.
func Diagnose(err error) Diagnostics {
	var d Diagnostics
	if err == nil {
		return d
	}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.Database = databaseCause(err)
	return d
}

func databaseCause(err error) *DatabaseCause {
	var pgErr *pgconn.PgError
	if stdErrors.As(err, &pgErr) {
		return &DatabaseCause{
			SQLState:   pgErr.Code,
			Constraint: pgErr.ConstraintName,
			Table:      pgErr.TableName,
			Detail:     pgErr.Detail,
		}
	}
	var pqErr *pq.Error
	if stdErrors.As(err, &pqErr) {
		return &DatabaseCause{
			SQLState:   string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Detail:     pqErr.Detail,
		}
	}
	return nil
}

// Fields flattens the diagnostics for structured logging. Empty values are
// left out.
func (d Diagnostics) Fields() map[string]any {
	fields := map[string]any{}
	if d.Code != "" {
		fields["error_code"] = string(d.Code)
	}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	if db := d.Database; db != nil {
		fields["pg_code"] = db.SQLState
		if db.Constraint != "" {
			fields["pg_constraint"] = db.Constraint
		}
		if db.Table != "" {
			fields["pg_table"] = db.Table
		}
	}
	return fields
}
