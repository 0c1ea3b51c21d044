package api

import "context"

type contextKey string

const userKey contextKey = "user"

// User is the authenticated caller of a request.
type User struct {
	ID   string
	Name string
}

// UserFromContext extracts the user from the context.
func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)

	return u, ok && u.ID != ""
}

// withUser returns a new context with the user set.
func withUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey, u)
}
