package shared

import "context"

type accountContextKey struct{}

// ContextWithAccount stores the authenticated account scope in context.
func ContextWithAccount(ctx context.Context, accountID int64) context.Context {
	return context.WithValue(ctx, accountContextKey{}, accountID)
}

// AccountFromContext extracts the account scope from context.
func AccountFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(accountContextKey{}).(int64)
	return id, ok
}
