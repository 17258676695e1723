package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/urlstore/internal/errors"
	"github.com/vango-dev/urlstore/pkg/host"
	"github.com/vango-dev/urlstore/pkg/lazy"
	"github.com/vango-dev/urlstore/pkg/location"
	"github.com/vango-dev/urlstore/pkg/schedule"
)

func watchCmd() *cobra.Command {
	var (
		navigate string
		replace  bool
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <ws-url>",
		Short: "Follow or drive a served history",
		Long: `Connect to a served history and print every location it moves to.

With --navigate the command requests one navigation and exits once the
server has answered.

Examples:
  urlstore watch ws://localhost:7070/ws
  urlstore watch ws://localhost:7070/ws --navigate "/products?page=2" --replace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd.OutOrStdout(), args[0], navigate, replace, timeout)
		},
	}

	cmd.Flags().StringVarP(&navigate, "navigate", "n", "", "Navigate to this URL and exit")
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the current entry instead of pushing")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Connect and request timeout for --navigate")

	return cmd
}

func runWatch(ctx context.Context, w io.Writer, rawURL, navigate string, replace bool, timeout time.Duration) error {
	client, err := host.NewClient(rawURL)
	if err != nil {
		return err
	}
	defer client.Close()

	loop := schedule.NewLoop()
	defer loop.Close()
	go loop.Run(ctx)

	remote := lazy.FromNotifier(loop, location.Location{}, client.Watch, lazy.WithName("remote-location"))

	if navigate == "" {
		unsubscribe := remote.Subscribe(func(loc location.Location) {
			if s := loc.String(); s != "" {
				fmt.Fprintln(w, s)
			}
		})
		defer unsubscribe()
		<-ctx.Done()
		return nil
	}

	target, err := url.Parse(navigate)
	if err != nil {
		return argError("invalid navigation target %q: %v", navigate, err)
	}

	remote.Acquire()
	defer remote.Release()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := waitConnected(ctx, client); err != nil {
		return err
	}
	if err := client.Navigate(ctx, target, location.NavigateOptions{ReplaceState: replace}); err != nil {
		return err
	}
	success(w, "Navigated to %s", client.Current().String())
	return nil
}

func waitConnected(ctx context.Context, client *host.Client) error {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for !client.Connected() {
		select {
		case <-ctx.Done():
			return errors.New(errors.CodeConnectFailed).Wrap(ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}
