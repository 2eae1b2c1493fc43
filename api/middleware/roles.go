package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/angelmondragon/farmlink-backend/api/responses"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
)

// RequireRole admits principals holding one of allowed. Mount it after Auth.
func RequireRole(logg *logger.Logger, allowed ...enums.UserRole) func(http.Handler) http.Handler {
	names := make([]string, len(allowed))
	for i, role := range allowed {
		names[i] = string(role)
	}
	denied := pkgerrors.New(pkgerrors.CodeForbidden, "only "+strings.Join(names, " or ")+" accounts can do this")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			switch {
			case !ok:
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			case !slices.Contains(allowed, p.Role):
				responses.WriteError(r.Context(), logg, w, denied)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
