package utils

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingHandler struct {
	slog.Handler
	err error
}

func (h failingHandler) Handle(context.Context, slog.Record) error { return h.err }

func TestMultiLogHandlerLevels(t *testing.T) {
	var debug, warn bytes.Buffer
	logger := slog.New(NewMultiLogHandler(
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	))

	logger.Debug("block uploaded", "album", "trip")
	logger.Warn("upload cancelled", "album", "trip")

	assert.Contains(t, debug.String(), "block uploaded")
	assert.Contains(t, debug.String(), "upload cancelled")
	assert.NotContains(t, warn.String(), "block uploaded")
	assert.Contains(t, warn.String(), "upload cancelled")
}

func TestMultiLogHandlerAttrsAndGroups(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(NewMultiLogHandler(
		slog.NewTextHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	)).With("album", "trip").WithGroup("part")

	logger.Info("committed", "file", "a.jpg")

	assert.Contains(t, a.String(), "album=trip")
	assert.Contains(t, a.String(), "part.file=a.jpg")
	assert.Contains(t, b.String(), `"part":{"file":"a.jpg"}`)
}

func TestMultiLogHandlerJoinsErrors(t *testing.T) {
	var buf bytes.Buffer
	errA := errors.New("disk full")
	errB := errors.New("pipe closed")
	h := NewMultiLogHandler(
		failingHandler{Handler: slog.NewTextHandler(&buf, nil), err: errA},
		slog.NewTextHandler(&buf, nil),
		failingHandler{Handler: slog.NewTextHandler(&buf, nil), err: errB},
	)

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "x", 0))
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Contains(t, buf.String(), "msg=x")
}
