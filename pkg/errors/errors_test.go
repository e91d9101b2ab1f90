package errors_test

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/agentstation/worldfeed/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundError(t *testing.T) {
	err := pkgerrors.NewNotFoundError("device", "abc")
	assert.Equal(t, "device with ID abc not found", err.Error())
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.True(t, pkgerrors.IsNotFound(fmt.Errorf("lookup: %w", err)))
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := pkgerrors.NewValidationError("region", "mars", "unknown region")
		assert.Equal(t, "validation failed for field region: unknown region", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "empty"}
		assert.Equal(t, "validation failed: empty", err.Error())
	})
}

func TestFetchError(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		err := pkgerrors.NewFetchError("pc", "http://feed", 503, nil)
		assert.Equal(t, "fetch pc feed from http://feed: unexpected status 503", err.Error())
		assert.True(t, pkgerrors.IsFetch(err))
	})

	t.Run("transport", func(t *testing.T) {
		base := errors.New("connection refused")
		err := pkgerrors.NewFetchError("ps4", "http://feed", 0, base)
		assert.Contains(t, err.Error(), "connection refused")
		assert.ErrorIs(t, err, base)
		assert.ErrorIs(t, err, pkgerrors.ErrFetch)
	})
}

func TestMalformedFeedError(t *testing.T) {
	err := pkgerrors.NewMalformedFeedError("pc", "Invasions[0].Goal", "expected number", nil)
	assert.Equal(t, "malformed pc feed at Invasions[0].Goal: expected number", err.Error())
	assert.True(t, pkgerrors.IsMalformed(err))
	assert.False(t, pkgerrors.IsFetch(err))

	noPath := pkgerrors.NewMalformedFeedError("pc", "", "not an object", nil)
	assert.Equal(t, "malformed pc feed: not an object", noPath.Error())
}

func TestCategoryError(t *testing.T) {
	base := errors.New("duplicate id")
	err := pkgerrors.WrapCategory("xbox", "alerts", base)
	require.Error(t, err)
	assert.Equal(t, "reconcile xbox/alerts: duplicate id", err.Error())
	assert.ErrorIs(t, err, pkgerrors.ErrCategory)
	assert.ErrorIs(t, err, base)
	assert.NoError(t, pkgerrors.WrapCategory("xbox", "alerts", nil))
}

func TestIOError(t *testing.T) {
	base := errors.New("disk full")
	err := pkgerrors.WrapIO("write", "/data/pc/alerts.json", base)
	require.Error(t, err)
	assert.Equal(t, "IO error during write of /data/pc/alerts.json: disk full", err.Error())
	assert.True(t, pkgerrors.IsStorage(err))
	assert.ErrorIs(t, err, base)

	var ioErr *pkgerrors.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "write", ioErr.Operation)
	assert.NoError(t, pkgerrors.WrapIO("write", "x", nil))
}

func TestNotificationError(t *testing.T) {
	err := pkgerrors.NewNotificationError("push", 401, errors.New("unauthorized"))
	assert.Equal(t, "notification via push failed (status 401): unauthorized", err.Error())
	assert.ErrorIs(t, err, pkgerrors.ErrNotification)

	wrapped := pkgerrors.WrapNotification("post", errors.New("timeout"))
	assert.Equal(t, "notification via post failed: timeout", wrapped.Error())
}

func TestConfigAndParseErrors(t *testing.T) {
	cfgErr := pkgerrors.NewConfigError("feeds", "no regions configured", nil)
	assert.Equal(t, "configuration error in feeds: no regions configured", cfgErr.Error())

	parseErr := pkgerrors.WrapParse("yaml", "checkpoint.yaml", errors.New("bad indent"))
	assert.Equal(t, "parse error in yaml file checkpoint.yaml: bad indent", parseErr.Error())
}

func TestStale(t *testing.T) {
	err := fmt.Errorf("pc: %w", pkgerrors.ErrStaleFeed)
	assert.True(t, pkgerrors.IsStale(err))
	assert.False(t, pkgerrors.IsStale(pkgerrors.ErrFetch))
}
