package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/decorhub/storefront/config"
	"github.com/decorhub/storefront/internal/bootstrap"
	"github.com/decorhub/storefront/internal/migrate"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
}

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 30 * time.Second
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr)) //nolint:forbidigo // exit status is the CLI contract
}

// run executes one admin command and returns the process exit status: 2 for
// usage errors, 1 when the command fails.
func run(args []string, stdout, stderr io.Writer) int {
	logger := bootstrap.InitLogger()

	if len(args) == 0 {
		_ = printUsage(stderr)
		return 2
	}
	cmd, ok := lookupCommand(args[0])
	if !ok {
		_ = writef(stderr, "unknown command %q\n\n", args[0])
		_ = printUsage(stderr)
		return 2
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.Error("load config", "error", err)
		return 1
	}
	logger = bootstrap.ConfigureLogging(cfg.Observability)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmdCtx := &commandContext{Ctx: ctx, Logger: logger, Config: cfg, Out: stdout}
	if err := cmd.run(cmdCtx, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		logger.ErrorContext(ctx, "command failed", "command", cmd.name, "error", err)
		return 1
	}
	return 0
}

// commands is listed in the order printed by the usage text.
func commands() []command {
	return []command{
		{"migrate", "Apply role store migrations, or list them with -status", runMigrations},
		{"role-get", "Show the role record for an email", runRoleGet},
		{"role-set", "Assign a role to an email and notify running instances", runRoleSet},
		{"role-delete", "Remove the role record for an email and notify running instances", runRoleDelete},
		{"role-changed", "Broadcast a role change for an email without touching the store", runRoleChanged},
		{"sessions-revoke", "Sign an account out everywhere by deleting its sessions", runSessionsRevoke},
		{"routes", "Validate the route table and print its scopes and entries", runRoutes},
	}
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commands() {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printUsage(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprint(tw, "Usage: storefront-admin <command> [flags]\n\nCommands:\n"); err != nil {
		return err
	}
	for _, c := range commands() {
		if _, err := fmt.Fprintf(tw, "  %s\t%s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return tw.Flush()
}

type migrateOptions struct {
	Timeout time.Duration
	Status  bool
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{Timeout: defaultMigrationTimeout}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete")
	fs.BoolVar(&opts.Status, "status", false, "List migrations and whether they are applied, without applying any")

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	in, err := openInfra(ctx, cmdCtx, needDB)
	if err != nil {
		return err
	}
	defer in.Close(cmdCtx)

	if opts.Status {
		states, statusErr := migrate.Status(ctx, in.DB)
		if statusErr != nil {
			return statusErr
		}
		return printMigrationStatus(cmdCtx.Out, states)
	}

	cmdCtx.Logger.Info("running database migrations")
	return bootstrap.RunMigrations(ctx, in.DB, cmdCtx.Logger)
}

func printMigrationStatus(w io.Writer, states []migrate.State) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT"); err != nil {
		return err
	}
	for _, st := range states {
		state, at := "pending", "-"
		if st.Applied {
			state, at = "applied", st.AppliedAt.UTC().Format(time.RFC3339)
		}
		if st.Modified {
			state = "modified"
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", st.Version, state, at); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
