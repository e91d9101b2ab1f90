package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/worldfeed/pkg/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "devices.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := time.Unix(1000, 0)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(" ")
	assert.True(t, errors.IsValidationError(err))
}

func TestAddAndList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Add(ctx, "device-a"))
	require.NoError(t, s.Add(ctx, "device-b"))
	require.NoError(t, s.Add(ctx, "device-a"))

	ids, err := s.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"device-a", "device-b"}, ids)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.True(t, errors.IsValidationError(s.Add(ctx, "")))
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Add(ctx, "a"))
	require.NoError(t, s.Add(ctx, "b"))

	removed, err := s.Remove(ctx, "a", "missing")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	ids, err := s.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	removed, err = s.Remove(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestReplaceKeepsRegistrationTime(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Add(ctx, "old"))
	before, err := s.List(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Replace(ctx, "old", "canonical"))

	after, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "canonical", after[0].ID)
	assert.Equal(t, before[0].AddedAt, after[0].AddedAt)
	assert.True(t, after[0].UpdatedAt.After(before[0].UpdatedAt))
}

func TestReplaceIntoExistingDevice(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.Add(ctx, "old"))
	require.NoError(t, s.Add(ctx, "canonical"))

	require.NoError(t, s.Replace(ctx, "old", "canonical"))

	ids, err := s.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"canonical"}, ids)
}

func TestReopenKeepsDevices(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "devices.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, "kept"))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	ids, err := s.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, ids)
}
