// Package logger holds the process-wide zerolog logger. Request-scoped children
// travel in the context; the order and consignment helpers stamp the fields an
// operator searches by when following one parcel through dispatch.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var log = zerolog.New(os.Stdout).With().Timestamp().Logger()

type ctxKey struct{}

// Init configures the global logger for service. Development gets a console writer.
func Init(service, env, logLevel string) {
	var output io.Writer = os.Stdout
	if env == "development" || env == "dev" || env == "" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}
	zerolog.SetGlobalLevel(ParseLevel(logLevel))
	SetOutput(output, service)
}

// SetOutput rebuilds the global logger on w. Tests use it to capture entries.
func SetOutput(w io.Writer, service string) {
	zerolog.TimeFieldFormat = time.RFC3339
	ctx := zerolog.New(w).With().Timestamp().Caller()
	if service != "" {
		ctx = ctx.Str("service", service)
	}
	log = ctx.Logger()
}

// ParseLevel accepts zerolog level names plus "warning". Anything else is info.
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func Get() *zerolog.Logger {
	return &log
}

// WithContext returns the request logger stored in ctx, or the global one.
func WithContext(ctx context.Context) *zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zerolog.Logger); ok {
		return l
	}
	return &log
}

func NewContext(ctx context.Context, l *zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

func WithRequestID(requestID string) zerolog.Logger {
	return log.With().Str("request_id", requestID).Logger()
}

// WithActor tags l with the operator or customer behind the request.
func WithActor(l zerolog.Logger, actorID, role string) zerolog.Logger {
	return l.With().Str("actor_id", actorID).Str("role", role).Logger()
}

// --- Dispatch fields ---

// ForOrder is the request logger with order_id attached.
func ForOrder(ctx context.Context, orderID string) zerolog.Logger {
	return WithContext(ctx).With().Str("order_id", orderID).Logger()
}

// ForConsignment adds the courier tracking code to ForOrder.
func ForConsignment(ctx context.Context, orderID, trackingCode string) zerolog.Logger {
	return WithContext(ctx).With().
		Str("order_id", orderID).
		Str("tracking_code", trackingCode).
		Logger()
}

// OrderTransition records a committed status change.
func OrderTransition(ctx context.Context, orderID, from, to, actorID string) {
	event := WithContext(ctx).Info().
		Str("order_id", orderID).
		Str("from", from).
		Str("to", to)
	if actorID != "" {
		event = event.Str("actor_id", actorID)
	}
	event.Msg("order status changed")
}

// CourierCall records one attempt against the courier API. Failed attempts are
// warnings; the caller decides whether the operation as a whole failed.
func CourierCall(ctx context.Context, operation string, attempt, status int, took time.Duration, err error) {
	l := WithContext(ctx)
	event := l.Debug()
	if err != nil {
		event = l.Warn().Err(err)
	}
	event.
		Str("courier_op", operation).
		Int("attempt", attempt).
		Int("status", status).
		Dur("took", took).
		Msg("courier call")
}

func ServiceStart(name, version, port string) {
	log.Info().
		Str("service", name).
		Str("version", version).
		Str("port", port).
		Msg("Service Started")
}

func ServiceStop(name string) {
	log.Info().
		Str("service", name).
		Msg("Service Stopped")
}
