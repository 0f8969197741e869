package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	SetOutput(buf, "orderdesk-test")
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prev)
		SetOutput(&bytes.Buffer{}, "")
	})
	return buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines[len(lines)-1])
	entry := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestForConsignment_CarriesOrderAndTracking(t *testing.T) {
	buf := capture(t)
	base := WithRequestID("req-7")
	ctx := NewContext(context.Background(), &base)

	l := ForConsignment(ctx, "order-1", "TRK-1")
	l.Info().Msg("orphan consignment cancelled")

	entry := lastEntry(t, buf)
	assert.Equal(t, "order-1", entry["order_id"])
	assert.Equal(t, "TRK-1", entry["tracking_code"])
	assert.Equal(t, "req-7", entry["request_id"])
	assert.Equal(t, "orderdesk-test", entry["service"])
}

func TestForOrder_FallsBackToGlobal(t *testing.T) {
	buf := capture(t)

	l := ForOrder(context.Background(), "order-2")
	l.Warn().Msg("courier status ignored")

	entry := lastEntry(t, buf)
	assert.Equal(t, "order-2", entry["order_id"])
	assert.Equal(t, "warn", entry["level"])
	assert.NotContains(t, entry, "request_id")
}

func TestWithActor(t *testing.T) {
	buf := capture(t)
	l := WithActor(WithRequestID("req-1"), "op-1", "operator")
	ctx := NewContext(context.Background(), &l)

	OrderTransition(ctx, "order-3", "processing", "ready_to_ship", "op-1")

	entry := lastEntry(t, buf)
	assert.Equal(t, "op-1", entry["actor_id"])
	assert.Equal(t, "operator", entry["role"])
	assert.Equal(t, "processing", entry["from"])
	assert.Equal(t, "ready_to_ship", entry["to"])
	assert.Equal(t, "order status changed", entry["message"])
}

func TestCourierCall_Levels(t *testing.T) {
	buf := capture(t)
	ctx := context.Background()

	CourierCall(ctx, "POST /orders", 1, 200, 15*time.Millisecond, nil)
	ok := lastEntry(t, buf)
	assert.Equal(t, "debug", ok["level"])
	assert.Equal(t, "POST /orders", ok["courier_op"])
	assert.EqualValues(t, 1, ok["attempt"])

	CourierCall(ctx, "POST /orders", 2, 0, time.Millisecond, errors.New("connection reset"))
	failed := lastEntry(t, buf)
	assert.Equal(t, "warn", failed["level"])
	assert.Equal(t, "connection reset", failed["error"])
	assert.EqualValues(t, 2, failed["attempt"])
}
