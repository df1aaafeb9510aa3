package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	stoparrivals "github.com/theoremus-urban-solutions/stop-arrivals"
	"github.com/theoremus-urban-solutions/stop-arrivals/favorites"
	"github.com/theoremus-urban-solutions/stop-arrivals/feed"
	"github.com/theoremus-urban-solutions/stop-arrivals/formatter"
	"github.com/theoremus-urban-solutions/stop-arrivals/lookup"
	"github.com/theoremus-urban-solutions/stop-arrivals/utils"
)

type lookupFlags struct {
	watch         bool
	favoritesOnly bool
	format        string
}

func newLookupCmd(g *globalFlags) *cobra.Command {
	f := &lookupFlags{}
	cmd := &cobra.Command{
		Use:   "lookup <stop-code>",
		Short: "Show upcoming arrivals at a stop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.format != "text" && f.format != "json" {
				return fmt.Errorf("unknown format %q (text|json)", f.format)
			}
			cfg, logger, err := g.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := stoparrivals.NewApp(ctx, cfg, g.feedName, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			board := app.NewBoard(f.watch || cfg.Lookup.AutoRefresh)
			defer board.Close()
			return runLookup(ctx, cmd.OutOrStdout(), board, app.Favorites, args[0], f)
		},
	}
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "keep refreshing until interrupted")
	cmd.Flags().BoolVar(&f.favoritesOnly, "favorites-only", false, "show favorite lines only")
	cmd.Flags().StringVarP(&f.format, "output", "o", "text", "text|json")
	return cmd
}

// runLookup performs the first lookup and, when watching, renders every
// later refresh until ctx ends.
func runLookup(ctx context.Context, out io.Writer, board *lookup.Board, stops favorites.Store, code string, f *lookupFlags) error {
	updates, unsubscribe := board.Subscribe()
	defer unsubscribe()

	if _, err := board.Load(ctx, code); err != nil && (!f.watch || feed.KindOf(err) == feed.KindInvalidInput) {
		return err
	}
	if err := render(out, board, stops, f); err != nil {
		return err
	}
	if !f.watch {
		return nil
	}
drain:
	for {
		select {
		case <-updates:
		default:
			break drain
		}
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if snap.Status == lookup.StatusLoading {
				continue
			}
			if err := render(out, board, stops, f); err != nil {
				return err
			}
		}
	}
}

func render(out io.Writer, board *lookup.Board, stops favorites.Store, f *lookupFlags) error {
	snap := board.View(f.favoritesOnly)
	if snap.Result == nil {
		_, err := fmt.Fprintf(out, "error: %s\n", snap.Error)
		return err
	}
	isFavorite := favorites.ContainsCode(stops, snap.Result.Stop.Code)
	view := formatter.BuildBoard(snap.Result, nil, utils.Now(), isFavorite)
	if f.format == "json" {
		return formatter.WriteJSONIndent(out, view)
	}
	if f.watch {
		fmt.Fprint(out, "\033[H\033[2J")
	}
	if err := formatter.WriteText(out, view); err != nil {
		return err
	}
	if snap.Status == lookup.StatusError {
		_, err := fmt.Fprintf(out, "refresh failed: %s\n", snap.Error)
		return err
	}
	return nil
}
