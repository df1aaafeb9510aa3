package formatter

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/theoremus-urban-solutions/stop-arrivals/utils"
)

// WriteText renders a board as an aligned plain-text table.
func WriteText(w io.Writer, b BoardView) error {
	title := b.Stop.Code
	if b.Stop.Name != "" {
		title += " " + b.Stop.Name
	}
	if b.Stop.City != "" {
		title += ", " + b.Stop.City
	}
	if b.IsFavorite {
		title += " *"
	}
	if _, err := fmt.Fprintf(w, "%s\n%s\n", title, strings.Repeat("=", len([]rune(title)))); err != nil {
		return err
	}
	if len(b.Arrivals) == 0 {
		_, err := fmt.Fprintln(w, "No arrivals in the next window.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tTO\tAT\tIN\tSTATUS")
	for _, a := range b.Arrivals {
		status := a.DelayLabel
		switch {
		case !a.Realtime:
			status = "scheduled"
		case status == "":
			status = "live"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.Line, a.Route, a.Clock, a.ETA, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	shown := len(b.Arrivals)
	_, err := fmt.Fprintf(w, "%d of %d arrivals, updated %s\n", shown, b.Total, utils.FormatClockInZone(b.FetchedAt))
	return err
}
