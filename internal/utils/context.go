package utils

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	ActorIDKey    contextKey = "actor_id"
	ActorEmailKey contextKey = "actor_email"
	ActorRoleKey  contextKey = "actor_role"
)

const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// SetActorContext sets caller identity into context (called by auth middleware).
func SetActorContext(ctx context.Context, id uuid.UUID, email string, role string) context.Context {
	ctx = context.WithValue(ctx, ActorIDKey, id)
	ctx = context.WithValue(ctx, ActorEmailKey, email)
	ctx = context.WithValue(ctx, ActorRoleKey, role)
	return ctx
}

// GetActorIDFromContext retrieves the caller id safely.
func GetActorIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ActorIDKey).(uuid.UUID)
	return id, ok
}

func GetActorEmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(ActorEmailKey).(string)
	return email
}

func GetActorRoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(ActorRoleKey).(string)
	return role
}
