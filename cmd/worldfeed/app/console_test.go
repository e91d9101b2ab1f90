package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeAdmin struct {
	tick        int
	reloads     int
	nameReloads int
	reloadErr   error
}

func (f *fakeAdmin) Tick() int { return f.tick }

func (f *fakeAdmin) SetTick(tick int) error {
	if tick < 0 {
		return errors.New("tick must not be negative")
	}
	f.tick = tick
	return nil
}

func (f *fakeAdmin) Reload(context.Context) error {
	f.reloads++
	return f.reloadErr
}

func (f *fakeAdmin) ReloadNames(context.Context) error {
	f.nameReloads++
	return nil
}

func TestConsoleExecute(t *testing.T) {
	tests := []struct {
		line   string
		action Action
		output string
		tick   int
	}{
		{line: "", action: ActionNone, output: "", tick: 59},
		{line: "currenttick", action: ActionNone, output: "Current tick: 59\n", tick: 59},
		{line: "  settick 120  ", action: ActionNone, output: "Current tick: 120\n", tick: 120},
		{line: "settick", action: ActionNone, output: "Could not parse \"\" as a tick\n", tick: 59},
		{line: "settick x", action: ActionNone, output: "Could not parse \"x\" as a tick\n", tick: 59},
		{line: "settick -1", action: ActionNone, output: "Setting tick failed: tick must not be negative\n", tick: 59},
		{line: "exit", action: ActionStop, output: "Current tick: 59\n", tick: 59},
		{line: "quit", action: ActionStop, output: "Current tick: 59\n", tick: 59},
		{line: "forcequit", action: ActionKill, output: "Current tick: 59\n", tick: 59},
		{line: "forceexit", action: ActionKill, output: "Current tick: 59\n", tick: 59},
		{line: "launch", action: ActionNone, output: "Unknown command \"launch\", type help for a list\n", tick: 59},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			admin := &fakeAdmin{tick: 59}
			var out bytes.Buffer
			c := NewConsole(admin, &out, nil)

			assert.Equal(t, tt.action, c.Execute(context.Background(), tt.line))
			assert.Equal(t, tt.output, out.String())
			assert.Equal(t, tt.tick, admin.tick)
		})
	}
}

func TestConsoleReload(t *testing.T) {
	admin := &fakeAdmin{}
	var out bytes.Buffer
	c := NewConsole(admin, &out, nil)

	assert.Equal(t, ActionNone, c.Execute(context.Background(), "reload"))
	assert.Equal(t, ActionNone, c.Execute(context.Background(), "names"))
	assert.Equal(t, 1, admin.reloads)
	assert.Equal(t, 1, admin.nameReloads)
	assert.Equal(t, "Configuration reloaded\nNames reloaded\n", out.String())

	out.Reset()
	admin.reloadErr = errors.New("bad yaml")
	c.Execute(context.Background(), "reload")
	assert.Equal(t, "Reload failed: bad yaml\n", out.String())
}

func TestConsoleRun(t *testing.T) {
	t.Run("stops on quit", func(t *testing.T) {
		admin := &fakeAdmin{tick: 1}
		var out bytes.Buffer
		action := NewConsole(admin, &out, nil).Run(context.Background(), strings.NewReader("settick 5\nquit\nreload\n"))
		assert.Equal(t, ActionStop, action)
		assert.Equal(t, 5, admin.tick)
		assert.Zero(t, admin.reloads)
	})

	t.Run("closed input", func(t *testing.T) {
		admin := &fakeAdmin{}
		action := NewConsole(admin, &bytes.Buffer{}, nil).Run(context.Background(), strings.NewReader("reload\n"))
		assert.Equal(t, ActionNone, action)
		assert.Equal(t, 1, admin.reloads)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		action := NewConsole(&fakeAdmin{}, &bytes.Buffer{}, nil).Run(ctx, blockingReader{})
		assert.Equal(t, ActionNone, action)
	})
}

// blockingReader never returns.
type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) { select {} }

func TestActionString(t *testing.T) {
	assert.Equal(t, "none", ActionNone.String())
	assert.Equal(t, "stop", ActionStop.String())
	assert.Equal(t, "kill", ActionKill.String())
}
