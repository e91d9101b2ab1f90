package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Action is what the process does after a console command.
type Action int

const (
	// ActionNone keeps the process running.
	ActionNone Action = iota
	// ActionStop stops polling after running cycles finish.
	ActionStop
	// ActionKill cancels running cycles and exits.
	ActionKill
)

func (a Action) String() string {
	switch a {
	case ActionStop:
		return "stop"
	case ActionKill:
		return "kill"
	default:
		return "none"
	}
}

// Admin is the runtime control surface shared by the console and the HTTP
// admin routes.
type Admin interface {
	Tick() int
	SetTick(tick int) error
	Reload(ctx context.Context) error
	ReloadNames(ctx context.Context) error
}

// Console reads operator commands, one per line.
type Console struct {
	admin  Admin
	out    io.Writer
	logger *zerolog.Logger
}

// NewConsole creates a console answering on out.
func NewConsole(admin Admin, out io.Writer, logger *zerolog.Logger) *Console {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Console{admin: admin, out: out, logger: logger}
}

// Run executes commands from in until one of them stops the process. It
// returns ActionNone when in is exhausted or ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) Action {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ActionNone
		case line, ok := <-lines:
			if !ok {
				c.logger.Debug().Msg("Console input closed")
				return ActionNone
			}
			if action := c.Execute(ctx, line); action != ActionNone {
				return action
			}
		}
	}
}

// Execute runs a single command line.
func (c *Console) Execute(ctx context.Context, line string) Action {
	command, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(command) {
	case "":
		return ActionNone

	case "reload":
		if err := c.admin.Reload(ctx); err != nil {
			c.printf("Reload failed: %v\n", err)
			return ActionNone
		}
		c.printf("Configuration reloaded\n")

	case "names":
		if err := c.admin.ReloadNames(ctx); err != nil {
			c.printf("Reloading names failed: %v\n", err)
			return ActionNone
		}
		c.printf("Names reloaded\n")

	case "currenttick":
		c.printf("Current tick: %d\n", c.admin.Tick())

	case "settick":
		tick, err := strconv.Atoi(arg)
		if err != nil {
			c.printf("Could not parse %q as a tick\n", arg)
			return ActionNone
		}
		if err := c.admin.SetTick(tick); err != nil {
			c.printf("Setting tick failed: %v\n", err)
			return ActionNone
		}
		c.printf("Current tick: %d\n", tick)

	case "exit", "quit":
		c.printf("Current tick: %d\n", c.admin.Tick())
		c.logger.Info().Msg("Graceful shutdown requested from console")
		return ActionStop

	case "forcequit", "forceexit":
		c.printf("Current tick: %d\n", c.admin.Tick())
		c.logger.Warn().Msg("Immediate shutdown requested from console")
		return ActionKill

	case "help":
		c.printf("Commands:\n" +
			"  reload         re-read the configuration\n" +
			"  names          re-read the name catalog\n" +
			"  currenttick    print the tick counter\n" +
			"  settick N      set the tick counter\n" +
			"  exit, quit     stop after running cycles finish\n" +
			"  forcequit      cancel running cycles and exit\n")

	default:
		c.printf("Unknown command %q, type help for a list\n", command)
	}
	return ActionNone
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}
