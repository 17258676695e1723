package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/vango-dev/urlstore/pkg/location"
	"github.com/vango-dev/urlstore/pkg/querysync"
	"github.com/vango-dev/urlstore/pkg/route"
)

func canonCmd() *cobra.Command {
	var nav bool

	cmd := &cobra.Command{
		Use:   "canon <path>...",
		Short: "Canonicalize URL paths",
		Long: `Canonicalize URL paths the way navigation targets are normalized.

Repeated slashes collapse, dot segments are resolved and trailing slashes
are removed. Paths with backslashes, NUL bytes, malformed escapes, or ".."
segments climbing above the root are rejected.

Examples:
  urlstore canon /blog//post/
  urlstore canon --nav "/search/../results?q=go"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCanon(cmd.OutOrStdout(), args, nav)
		},
	}

	cmd.Flags().BoolVar(&nav, "nav", false, "Require site-relative navigation targets")

	return cmd
}

func runCanon(w io.Writer, inputs []string, nav bool) error {
	for _, input := range inputs {
		if nav {
			out, err := route.CanonicalizeNavPath(input)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, out)
			continue
		}
		c, err := route.CanonicalizePath(input)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, c.String())
	}
	return nil
}

func inspectCmd() *cobra.Command {
	var sorted bool

	cmd := &cobra.Command{
		Use:   "inspect <url>",
		Short: "Show the query parameters of a URL",
		Long: `Show the query parameters of a URL in order, decoded.

Examples:
  urlstore inspect "/products?sort=price&tag=red&tag=sale"
  urlstore inspect --sort "https://shop.test/?b=2&a=1"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.OutOrStdout(), args[0], sorted)
		},
	}

	cmd.Flags().BoolVar(&sorted, "sort", false, "Sort keys the way query stores serialize them")

	return cmd
}

func runInspect(w io.Writer, raw string, sorted bool) error {
	_, query, _ := strings.Cut(raw, "?")
	query, _, _ = strings.Cut(query, "#")
	values := querysync.ParseValues(query)
	if sorted {
		values.Sort()
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"#", "key", "value"})
	for i, p := range values {
		tbl.AppendRow(table.Row{i + 1, p.Key, p.Value})
	}
	tbl.Render()
	fmt.Fprintf(w, "encoded: %s\n", values.Encode())
	return nil
}

func setCmd() *cobra.Command {
	var (
		deletes []string
		push    bool
		noSort  bool
	)

	cmd := &cobra.Command{
		Use:   "set <url> [key=value]...",
		Short: "Rewrite query parameters as a query store would",
		Long: `Rewrite query parameters of a URL through query stores.

Each key=value pair is written by its own store against an in-memory
history starting at <url>. Writes that leave the URL unchanged do not
navigate. Unless --no-sort is given keys come out sorted.

Examples:
  urlstore set "/products?page=1" page=2 q=shoes
  urlstore set "/products?page=2&q=shoes" --delete q`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runSet(cmd.OutOrStdout(), args[0], args[1:], deletes,
				push || cfg.Query.PushState, noSort || cfg.Query.NoSort)
		},
	}

	cmd.Flags().StringSliceVarP(&deletes, "delete", "d", nil, "Keys to remove")
	cmd.Flags().BoolVar(&push, "push", false, "Push a history entry per write instead of replacing")
	cmd.Flags().BoolVar(&noSort, "no-sort", false, "Keep codec order instead of sorting keys")

	return cmd
}

func runSet(w io.Writer, rawURL string, assignments, deletes []string, push, noSort bool) error {
	h, err := location.ParseHistory(rawURL)
	if err != nil {
		return argError("invalid url %q: %v", rawURL, err)
	}

	var navErr error
	opts := []querysync.Option{
		querysync.WithNavigateOptions(location.ReplaceState(!push)),
		querysync.WithNavigateErrorHandler(func(_ string, err error) { navErr = err }),
	}
	if noSort {
		opts = append(opts, querysync.WithoutSort())
	}

	for _, a := range assignments {
		key, value, ok := strings.Cut(a, "=")
		if !ok || key == "" {
			return argError("expected key=value, got %q", a)
		}
		querysync.NewParam(h, h, key, querysync.Optional(), opts...).Set(&value)
	}
	for _, key := range deletes {
		querysync.NewParam(h, h, key, querysync.Optional(), opts...).Set(nil)
	}
	if navErr != nil {
		return navErr
	}

	fmt.Fprintln(w, h.Current().String())
	if h.Len() > 1 {
		info(w, "%d history entries", h.Len())
	}
	return nil
}

func routeCmd() *cobra.Command {
	var (
		params []string
		query  []string
		hash   string
	)

	cmd := &cobra.Command{
		Use:   "route <route-id>",
		Short: "Build a URL from a route id",
		Long: `Build a URL from a route id and its parameters.

Route ids use bracketed segments: [name] is required, [[name]] optional,
[...name] matches the rest of the path and (group) segments are dropped.

Examples:
  urlstore route "/blog/[slug]" -p slug=hello-world
  urlstore route "/(shop)/products/[id]" -p id=42 -q tab=reviews --hash top`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoute(cmd.OutOrStdout(), args[0], params, query, hash)
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Route parameter as name=value")
	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "Query parameter as key=value, repeatable")
	cmd.Flags().StringVar(&hash, "hash", "", "Fragment")

	return cmd
}

func runRoute(w io.Writer, routeID string, params, query []string, hash string) error {
	opts := route.Options{RouteID: routeID, Hash: hash, Params: make(map[string]string)}
	for _, p := range params {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return argError("expected name=value, got %q", p)
		}
		opts.Params[name] = value
	}
	for _, q := range query {
		key, value, ok := strings.Cut(q, "=")
		if !ok || key == "" {
			return argError("expected key=value, got %q", q)
		}
		opts.Query.Add(key, value)
	}

	out, err := route.Build(opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out)
	return nil
}
