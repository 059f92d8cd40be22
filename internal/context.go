package internal

import (
	"context"
	"time"
)

type ctxKey string

const (
	ContextCredentialsKey ctxKey = "credentials"
	ContextClientIPKey    ctxKey = "client_ip"
)

// Credentials are the claimed identity carried out of band with a request. They
// are unverified until the authorization engine checks them.
type Credentials struct {
	AccountID int64
	Token     string
}

func CredentialsFromContext(ctx context.Context) (Credentials, bool) {
	if ctx == nil {
		return Credentials{}, false
	}
	creds, ok := ctx.Value(ContextCredentialsKey).(Credentials)
	return creds, ok
}

func ContextWithCredentials(ctx context.Context, creds Credentials) context.Context {
	return context.WithValue(ctx, ContextCredentialsKey, creds)
}

func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ContextClientIPKey, ip)
}

// ClientIPFromContext returns the caller address recorded by the transport, if any.
func ClientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(ContextClientIPKey).(string)
	return ip
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
