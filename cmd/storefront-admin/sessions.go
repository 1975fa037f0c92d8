package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"strings"

	redisadapter "github.com/decorhub/storefront/internal/adapters/redis"
	"github.com/decorhub/storefront/internal/ports"
)

type sessionOptions struct {
	Email  string
	DryRun bool
}

func parseSessionFlags(name string, args []string) (sessionOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts sessionOptions
	fs.StringVar(&opts.Email, "email", "", "Email address of the account")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "List the sessions that would be revoked")
	if err := fs.Parse(args); err != nil {
		return sessionOptions{}, err
	}
	opts.Email = strings.ToLower(strings.TrimSpace(opts.Email))
	if opts.Email == "" {
		return sessionOptions{}, errors.New("--email is required")
	}
	return opts, nil
}

// sessionLister is implemented by stores that index sessions per email.
type sessionLister interface {
	SessionIDs(ctx context.Context, email string) ([]string, error)
}

func runSessionsRevoke(cmdCtx *commandContext, args []string) error {
	opts, err := parseSessionFlags("sessions-revoke", args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	in, err := openInfra(ctx, cmdCtx, needRedis)
	if err != nil {
		return err
	}
	defer in.Close(cmdCtx)

	return revokeSessions(ctx, cmdCtx, redisadapter.NewSessionStore(in.Redis), opts)
}

type sessionIndex interface {
	sessionLister
	ports.SessionRevoker
}

// revokeSessions deletes the stored sessions of an account. Instances drop
// their in-memory state the next time the session is looked up.
func revokeSessions(ctx context.Context, cmdCtx *commandContext, store sessionIndex, opts sessionOptions) error {
	if opts.DryRun {
		ids, err := store.SessionIDs(ctx, opts.Email)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := writef(cmdCtx.Out, "%s\n", id); err != nil {
				return err
			}
		}
		return writef(cmdCtx.Out, "%s: %d live session(s)\n", opts.Email, len(ids))
	}

	n, err := store.DeleteByEmail(ctx, opts.Email)
	if err != nil {
		return err
	}
	cmdCtx.Logger.Info("sessions revoked", "email", opts.Email, "sessions", n)
	return writef(cmdCtx.Out, "%s: revoked %d session(s)\n", opts.Email, n)
}
