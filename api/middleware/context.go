package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID   contextKey = "user_id"
	ctxRole     contextKey = "actor_role"
	ctxAccessID contextKey = "access_id"
)

// Principal is the authenticated caller resolved from the bearer token.
type Principal struct {
	UserID   uuid.UUID
	Role     enums.UserRole
	AccessID string
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, p.UserID)
	ctx = context.WithValue(ctx, ctxRole, p.Role)
	return context.WithValue(ctx, ctxAccessID, p.AccessID)
}

// PrincipalFromContext returns false when the request is unauthenticated.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	id, ok := ctx.Value(ctxUserID).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return Principal{}, false
	}
	role, _ := ctx.Value(ctxRole).(enums.UserRole)
	access, _ := ctx.Value(ctxAccessID).(string)
	return Principal{UserID: id, Role: role, AccessID: access}, true
}

func UserIDFromContext(ctx context.Context) uuid.UUID {
	p, _ := PrincipalFromContext(ctx)
	return p.UserID
}

func RoleFromContext(ctx context.Context) enums.UserRole {
	p, _ := PrincipalFromContext(ctx)
	return p.Role
}
