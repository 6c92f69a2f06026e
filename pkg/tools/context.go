package tools

import "context"

type contextKey int

const senderEmailKey contextKey = iota

// WithSenderEmail attaches the requesting user's email to the context so
// action tools can enforce authorization.
func WithSenderEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, senderEmailKey, email)
}

// SenderEmailFromContext returns the requesting user's email, or "".
func SenderEmailFromContext(ctx context.Context) string {
	if email, ok := ctx.Value(senderEmailKey).(string); ok {
		return email
	}
	return ""
}
