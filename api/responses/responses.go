// Package responses renders the JSON envelopes every handler returns.
package responses

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	render(w, status, types.SuccessEnvelope{Success: true, Data: data})
}

// WriteMessage is for endpoints such as logout that mostly confirm an action.
func WriteMessage(w http.ResponseWriter, status int, data any, message string) {
	render(w, status, types.SuccessEnvelope{Success: true, Data: data, Message: message})
}

// WriteError renders err as an error envelope. Untyped errors become
// INTERNAL_ERROR, and codes marked retryable never echo their message since
// it usually describes infrastructure.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	envelope := types.ErrorEnvelope{
		Message: meta.PublicMessage,
		Error:   types.APIError{Code: string(typed.Code())},
	}
	if msg := typed.Message(); msg != "" && !meta.Retryable {
		envelope.Message = msg
	}
	if meta.DetailsAllowed {
		envelope.Error.Details = typed.Details()
	}

	report(ctx, logg, meta.HTTPStatus, err)
	render(w, meta.HTTPStatus, envelope)
}

func report(ctx context.Context, logg *logger.Logger, status int, err error) {
	if logg == nil {
		return
	}
	fields := pkgerrors.Diagnose(err).Fields()
	fields["http_status"] = status
	ctx = logg.WithFields(ctx, fields)
	if status < http.StatusInternalServerError {
		logg.Warn(ctx, "request.rejected")
		return
	}
	logg.Error(ctx, "request.error", err)
}

// render writes the status before the body, so an encode failure can only
// be logged.
func render(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Int("status", status).Msg("response.encode_failed")
	}
}
