package context

import (
	"context"
	"net/http"

	"github.com/kehindemorol/vestra/internal/repository"
)

type contextKey string

const (
	authenticatedAdminContextKey = contextKey("authenticatedAdmin")
)

func ContextSetAuthenticatedAdmin(r *http.Request, admin *repository.AdminUser) *http.Request {
	ctx := context.WithValue(r.Context(), authenticatedAdminContextKey, admin)
	return r.WithContext(ctx)
}

func ContextGetAuthenticatedAdmin(r *http.Request) *repository.AdminUser {
	admin, ok := r.Context().Value(authenticatedAdminContextKey).(*repository.AdminUser)
	if !ok {
		return nil
	}

	return admin
}
