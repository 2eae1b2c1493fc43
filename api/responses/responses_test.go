package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/types"
)

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSuccessEnvelopes(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccessStatus(rec, http.StatusCreated, map[string]string{"hello": "world"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true,"data":{"hello":"world"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	WriteMessage(rec, http.StatusOK, nil, "Logged out")
	assert.JSONEq(t, `{"success":true,"message":"Logged out"}`, rec.Body.String())
}

func TestWriteErrorKeepsDomainMessageAndDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeReasonTooLong, "reason must be at most 70 characters").
		WithDetails(map[string]any{"max_length": 70, "length": 71})
	WriteError(context.Background(), logger.Nop(), rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[types.ErrorEnvelope](t, rec)
	assert.False(t, body.Success)
	assert.Equal(t, string(pkgerrors.CodeReasonTooLong), body.Error.Code)
	assert.Equal(t, "reason must be at most 70 characters", body.Message)
	assert.Equal(t, map[string]any{"max_length": 70.0, "length": 71.0}, body.Error.Details)
}

func TestWriteErrorHidesInternalMessages(t *testing.T) {
	for name, err := range map[string]error{
		"untyped":   errors.New("pq: relation does not exist"),
		"nil":       nil,
		"retryable": pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("dial tcp"), "redis down at 10.0.0.3"),
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(context.Background(), nil, rec, err)

			body := decode[types.ErrorEnvelope](t, rec)
			meta := pkgerrors.MetadataFor(pkgerrors.Code(body.Error.Code))
			assert.Equal(t, meta.HTTPStatus, rec.Code)
			assert.GreaterOrEqual(t, rec.Code, http.StatusInternalServerError)
			assert.Equal(t, meta.PublicMessage, body.Message)
			assert.Nil(t, body.Error.Details)
		})
	}
}
