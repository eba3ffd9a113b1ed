// Command starchart-admin performs one-off maintenance against the
// starchart database: creating parent accounts, seeding the catalog,
// running the legacy backfill, and taking or restoring backups.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/dukerupert/starchart/internal/config"
	"github.com/dukerupert/starchart/internal/database"
	"github.com/dukerupert/starchart/internal/docstore"
	"github.com/dukerupert/starchart/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// env is what every command runs against.
type env struct {
	cfg    *config.Config
	docs   *docstore.Store
	logger *slog.Logger
	out    io.Writer
}

type command struct {
	flags   *flag.FlagSet
	usage   string
	short   string
	// offline commands run without configuration or a database.
	offline bool
	exec    func(ctx context.Context, e *env, args []string) error
}

func (c *command) name() string {
	name, _, _ := strings.Cut(c.usage, " ")
	return name
}

func commands() []*command {
	return []*command{
		addUserCmd(),
		seedCmd(),
		backfillCmd(),
		backupCmd(),
		restoreCmd(),
		vapidKeysCmd(),
	}
}

func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	cmds := commands()
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(out, cmds)
		return 0
	}

	var cmd *command
	for _, c := range cmds {
		if c.name() == args[0] {
			cmd = c
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(errOut, "error: unknown command %q\n\n", args[0])
		printUsage(errOut, cmds)
		return 1
	}

	var flagOut strings.Builder
	cmd.flags.SetOutput(&flagOut)
	if err := cmd.flags.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printCommandHelp(out, cmd)
			return 0
		}
		fmt.Fprintln(errOut, "error:", err)
		printCommandHelp(errOut, cmd)
		return 1
	}

	if cmd.offline {
		if err := cmd.exec(ctx, &env{out: out}, cmd.flags.Args()); err != nil {
			fmt.Fprintln(errOut, "error:", err)
			return 1
		}
		return 0
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	db, err := database.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		fmt.Fprintln(errOut, "error: open database:", err)
		return 1
	}
	defer db.Close()

	docs, err := docstore.New(db, cfg.DBDriver)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	e := &env{
		cfg:    cfg,
		docs:   docs,
		logger: logging.New(errOut, cfg.LogLevel, cfg.LogFormat),
		out:    out,
	}
	if err := cmd.exec(ctx, e, cmd.flags.Args()); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer, cmds []*command) {
	fmt.Fprintln(w, "Usage: starchart-admin <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range cmds {
		fmt.Fprintf(w, "  %-32s %s\n", c.usage, c.short)
	}
}

func printCommandHelp(w io.Writer, c *command) {
	fmt.Fprintln(w, "Usage: starchart-admin", c.usage)
	fmt.Fprintln(w)
	fmt.Fprintln(w, c.short)
	if c.flags.HasFlags() {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Flags:")
		var buf strings.Builder
		c.flags.SetOutput(&buf)
		c.flags.PrintDefaults()
		fmt.Fprint(w, buf.String())
	}
}
