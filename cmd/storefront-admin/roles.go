package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/redis/go-redis/v9"

	redisadapter "github.com/decorhub/storefront/internal/adapters/redis"
	"github.com/decorhub/storefront/internal/adapters/rolestore"
	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	"github.com/decorhub/storefront/internal/ports"
)

type roleOptions struct {
	Email  string
	Role   domainauth.Role
	Name   string
	Photo  string
	Notify bool
}

func parseRoleFlags(name string, args []string, wantRole bool) (roleOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		opts roleOptions
		role string
	)
	fs.StringVar(&opts.Email, "email", "", "Email address of the account")
	if wantRole {
		fs.StringVar(&role, "role", "", "Role to assign (user, decorator, admin)")
		fs.StringVar(&opts.Name, "name", "", "Display name shown in the dashboard")
		fs.StringVar(&opts.Photo, "photo", "", "Profile photo URL")
	}
	if name == "role-set" || name == "role-delete" {
		fs.BoolVar(&opts.Notify, "notify", true, "Broadcast the change to running instances")
	}

	if err := fs.Parse(args); err != nil {
		return roleOptions{}, err
	}
	opts.Email = strings.ToLower(strings.TrimSpace(opts.Email))
	if opts.Email == "" {
		return roleOptions{}, errors.New("--email is required")
	}
	if wantRole {
		r, err := domainauth.ParseRole(role)
		if err != nil {
			return roleOptions{}, fmt.Errorf("--role: %w", err)
		}
		opts.Role = r
	}
	return opts, nil
}

func runRoleGet(cmdCtx *commandContext, args []string) error {
	opts, err := parseRoleFlags("role-get", args, false)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	in, err := openInfra(ctx, cmdCtx, needDB)
	if err != nil {
		return err
	}
	defer in.Close(cmdCtx)

	profile, err := rolestore.NewPostgresStore(in.DB).Lookup(ctx, opts.Email)
	if errors.Is(err, ports.ErrRoleNotFound) {
		return writef(cmdCtx.Out, "%s: no role record\n", opts.Email)
	}
	if err != nil {
		return err
	}
	return printProfile(cmdCtx, opts.Email, profile)
}

func printProfile(cmdCtx *commandContext, email string, p domainauth.RoleProfile) error {
	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"Email", email},
		{"Role", string(p.Role)},
		{"Name", p.DisplayName},
		{"Photo", p.PhotoURL},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runRoleSet(cmdCtx *commandContext, args []string) error {
	opts, err := parseRoleFlags("role-set", args, true)
	if err != nil {
		return err
	}
	return mutateRole(cmdCtx, opts, func(ctx context.Context, store ports.RoleWriter) error {
		return store.Upsert(ctx, opts.Email, domainauth.RoleProfile{
			Role:        opts.Role,
			DisplayName: opts.Name,
			PhotoURL:    opts.Photo,
		})
	})
}

func runRoleDelete(cmdCtx *commandContext, args []string) error {
	opts, err := parseRoleFlags("role-delete", args, false)
	if err != nil {
		return err
	}
	return mutateRole(cmdCtx, opts, func(ctx context.Context, store ports.RoleWriter) error {
		return store.Delete(ctx, opts.Email)
	})
}

// mutateRole applies a store change and, when asked, drops the cached role
// and announces the change so running instances re-resolve the account.
func mutateRole(
	cmdCtx *commandContext,
	opts roleOptions,
	apply func(context.Context, ports.RoleWriter) error,
) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	n := needDB
	if opts.Notify {
		n |= wantRedis
	}
	in, err := openInfra(ctx, cmdCtx, n)
	if err != nil {
		return err
	}
	defer in.Close(cmdCtx)

	store := rolestore.NewPostgresStore(in.DB)
	var _ ports.RoleWriter = store
	if err := apply(ctx, store); err != nil {
		return err
	}
	cmdCtx.Logger.Info("role record updated", "email", opts.Email, "role", opts.Role)

	if !opts.Notify {
		return nil
	}
	if in.Redis == nil {
		cmdCtx.Logger.Warn("redis not configured; running instances keep the old role until their sessions expire")
		return nil
	}
	return announceRoleChange(ctx, cmdCtx, in.Redis, store, opts.Email)
}

func announceRoleChange(
	ctx context.Context,
	cmdCtx *commandContext,
	client redis.UniversalClient,
	store ports.RoleStore,
	email string,
) error {
	cache := redisadapter.NewRoleCache(client, store, redisadapter.RoleCacheOptions{Logger: cmdCtx.Logger})
	if err := cache.Invalidate(ctx, email); err != nil {
		return fmt.Errorf("invalidate cached role: %w", err)
	}
	events := redisadapter.NewRoleEvents(client, redisadapter.RoleEventsOptions{
		Channel: cmdCtx.Config.RoleEventsChannel,
		Logger:  cmdCtx.Logger,
	})
	if err := events.Publish(ctx, email); err != nil {
		return fmt.Errorf("publish role change: %w", err)
	}
	cmdCtx.Logger.Info("role change broadcast", "email", email, "channel", cmdCtx.Config.RoleEventsChannel)
	return nil
}

func runRoleChanged(cmdCtx *commandContext, args []string) error {
	opts, err := parseRoleFlags("role-changed", args, false)
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

	return announceRoleChange(ctx, cmdCtx, in.Redis, nil, opts.Email)
}
