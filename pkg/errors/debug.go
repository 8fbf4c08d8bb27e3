package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// ErrorDump flattens an error chain for structured logs. Driver fields are
// filled from whichever database driver produced the root error.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`

	SQLiteCode string `json:"sqlite_code,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	var liteErr sqlite3.Error
	switch {
	case errors.As(err, &pgxErr):
		d.PGCode, d.PGMessage, d.PGDetail = pgxErr.Code, pgxErr.Message, pgxErr.Detail
		d.PGConstraint, d.PGTable, d.PGColumn = pgxErr.ConstraintName, pgxErr.TableName, pgxErr.ColumnName
	case errors.As(err, &pqErr):
		// stored procedure RAISE EXCEPTION surfaces here through database/sql
		d.PGCode, d.PGMessage, d.PGDetail = string(pqErr.Code), pqErr.Message, pqErr.Detail
		d.PGConstraint, d.PGTable, d.PGColumn = pqErr.Constraint, pqErr.Table, pqErr.Column
	case errors.As(err, &liteErr):
		d.SQLiteCode = liteErr.ExtendedCode.Error()
	}
	return d
}
