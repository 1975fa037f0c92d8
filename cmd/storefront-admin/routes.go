package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/decorhub/storefront/config"
	"github.com/decorhub/storefront/internal/domain/access"
	"github.com/decorhub/storefront/internal/domain/route"
)

type routesOptions struct {
	File    string
	Resolve string
}

func parseRoutesFlags(args []string, defaultFile string) (routesOptions, error) {
	fs := flag.NewFlagSet("routes", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts routesOptions
	fs.StringVar(&opts.File, "file", defaultFile, "Route table YAML file (empty for the built-in table)")
	fs.StringVar(&opts.Resolve, "resolve", "", "Resolve a single path instead of listing the table")

	if err := fs.Parse(args); err != nil {
		return routesOptions{}, err
	}
	return opts, nil
}

func runRoutes(cmdCtx *commandContext, args []string) error {
	opts, err := parseRoutesFlags(args, cmdCtx.Config.Routes.File)
	if err != nil {
		return err
	}
	table, err := config.RoutesConfig{File: opts.File}.Load()
	if err != nil {
		return err
	}
	if opts.Resolve != "" {
		return printMatch(cmdCtx, opts.Resolve, table.Resolve(opts.Resolve))
	}
	return printTable(cmdCtx, table)
}

func printTable(cmdCtx *commandContext, table *route.Table) error {
	tw := tabwriter.NewWriter(cmdCtx.Out, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "SCOPE\tSHELL\tPOLICY"); err != nil {
		return err
	}
	for _, s := range table.Scopes() {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Prefix, shellName(s.Shell), policyName(s.Policy)); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(tw, "\nPATTERN\tVIEW\tSHELL\tPOLICY"); err != nil {
		return err
	}
	for _, e := range table.Entries() {
		m := table.Resolve(e.Pattern)
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Pattern, e.View, shellName(m.Shell), policyName(m.Policy)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printMatch(cmdCtx *commandContext, path string, m route.Match) error {
	if !m.Found {
		return writef(cmdCtx.Out, "%s: no route (view %s)\n", path, m.View)
	}
	params := make([]string, 0, len(m.Params))
	for k, v := range m.Params {
		params = append(params, k+"="+v)
	}
	sort.Strings(params)
	return writef(cmdCtx.Out, "%s -> %s (pattern %s, shell %s, policy %s, params [%s])\n",
		path, m.View, m.Pattern, shellName(m.Shell), policyName(m.Policy), strings.Join(params, " "))
}

func shellName(s route.Shell) string {
	if s == "" {
		return "-"
	}
	return string(s)
}

func policyName(p access.Policy) string {
	switch {
	case p.RoleRestricted():
		roles := make([]string, len(p.Roles))
		for i, r := range p.Roles {
			roles[i] = string(r)
		}
		return "roles:" + strings.Join(roles, ",")
	case p.RequiresAuth:
		return "signed-in"
	default:
		return "public"
	}
}
