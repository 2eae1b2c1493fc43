package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataFor(t *testing.T) {
	cases := map[Code]Metadata{
		CodeValidation:        {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
		CodeUnauthorized:      {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
		CodeStateConflict:     {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true},
		CodeInternal:          {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true},
		CodeDependency:        {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable", Retryable: true, DetailsAllowed: true},
		CodeInsufficientStock: {HTTPStatus: http.StatusConflict, PublicMessage: "insufficient stock", DetailsAllowed: true},
		CodeProductNotFound:   {HTTPStatus: http.StatusNotFound, PublicMessage: "product not found"},
		CodeMissingReason:     {HTTPStatus: http.StatusBadRequest, PublicMessage: "rejection reason is required"},
		CodeNetwork:           {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "Network error: Cannot connect to server", Retryable: true},
		"SOMETHING_UNKNOWN":   {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true},
	}
	for code, want := range cases {
		assert.Equal(t, want, MetadataFor(code), string(code))
	}
}

func TestEveryCodeHasMetadata(t *testing.T) {
	for code, m := range metadataByCode {
		assert.NotZero(t, m.HTTPStatus, string(code))
		assert.NotEmpty(t, m.PublicMessage, string(code))
	}
}

func TestErrorCarriesCauseAndDetails(t *testing.T) {
	cause := stdErrors.New("stock row locked")
	err := Wrap(CodeInsufficientStock, cause, "reserve stock").
		WithDetails(map[string]any{"available": "1.5"})

	assert.Equal(t, "INSUFFICIENT_STOCK: reserve stock", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, map[string]any{"available": "1.5"}, err.Details())
	assert.Nil(t, New(CodeValidation, "x").Details())
}

func TestNilErrorIsSafe(t *testing.T) {
	var e *Error
	assert.Equal(t, CodeInternal, e.Code())
	assert.Empty(t, e.Message())
	assert.Empty(t, e.Error())
	assert.Nil(t, e.Unwrap())
	assert.Nil(t, e.WithDetails("x"))
}

func TestAsAndIsCode(t *testing.T) {
	outer := fmt.Errorf("place order: %w", New(CodeInsufficientFunds, "short by 61.00"))

	typed := As(outer)
	require.NotNil(t, typed)
	assert.Equal(t, CodeInsufficientFunds, typed.Code())
	assert.True(t, IsCode(outer, CodeInsufficientFunds))
	assert.False(t, IsCode(outer, CodeInsufficientStock))
	assert.False(t, IsCode(stdErrors.New("plain"), CodeInternal))
	assert.Nil(t, As(nil))
}

func TestDiagnoseWalksChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", Wrap(CodeDependency, stdErrors.New("db down"), "query failed"))
	d := Diagnose(err)
	if d.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", d.Code)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected three chain entries, got %v", d.Chain)
	}
	if d.Database != nil {
		t.Fatalf("plain errors carry no database cause")
	}
	fields := d.Fields()
	if fields["error_code"] != string(CodeDependency) {
		t.Fatalf("unexpected fields %v", fields)
	}
	if len(Diagnose(nil).Fields()) != 0 {
		t.Fatalf("expected no fields for nil")
	}
}

func TestDiagnoseExtractsDriverErrors(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key", TableName: "users"}
	d := Diagnose(Wrap(CodeConflict, pgErr, "insert user"))
	if d.Database == nil || d.Database.SQLState != "23505" || d.Database.Constraint != "users_email_key" {
		t.Fatalf("unexpected pgx cause %+v", d.Database)
	}

	pqErr := &pq.Error{Code: "23503", Constraint: "orders_product_id_fkey"}
	fields := Diagnose(fmt.Errorf("insert order: %w", pqErr)).Fields()
	if fields["pg_code"] != "23503" || fields["pg_constraint"] != "orders_product_id_fkey" {
		t.Fatalf("unexpected pq fields %v", fields)
	}
	if _, ok := fields["pg_table"]; ok {
		t.Fatalf("empty table should be omitted")
	}
}
