package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/theoremus-urban-solutions/stop-arrivals/arrivals"
	"github.com/theoremus-urban-solutions/stop-arrivals/formatter"
	"github.com/theoremus-urban-solutions/stop-arrivals/gtfsrt"
)

type tripUpdatesReport struct {
	FeedTimestamp time.Time                  `json:"feedTimestamp"`
	StopID        string                     `json:"stopId"`
	Arrivals      []arrivals.RealtimeArrival `json:"arrivals"`
}

// newTripUpdatesCmd decodes a GTFS-RT TripUpdates feed and lists the
// realtime rows it yields for one stop id.
func newTripUpdatesCmd(g *globalFlags) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "trip-updates <stop-id>",
		Short: "Decode a GTFS-RT TripUpdates feed and show the rows for a stop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiKey := ""
			if source == "" {
				cfg, _, err := g.setup()
				if err != nil {
					return err
				}
				f, err := cfg.SelectFeed(g.feedName)
				if err != nil {
					return err
				}
				source, apiKey = f.GTFSRT.TripUpdatesURL, f.API.APIKey
			}
			if source == "" {
				return fmt.Errorf("no trip updates source: pass --source or set gtfsrt.tripUpdatesURL")
			}
			data, err := newFetcher(apiKey).fetch(cmd.Context(), source)
			if err != nil {
				return err
			}
			return writeTripUpdates(cmd.OutOrStdout(), data, args[0])
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "URL or file path of the TripUpdates feed (default: from config)")
	return cmd
}

func writeTripUpdates(out io.Writer, data []byte, stopID string) error {
	fm, err := gtfsrt.Decode(data)
	if err != nil {
		return err
	}
	idx := gtfsrt.NewTripUpdateIndex(fm)
	report := tripUpdatesReport{
		FeedTimestamp: time.Unix(idx.HeaderTimestamp(), 0).UTC(),
		StopID:        stopID,
		Arrivals:      []arrivals.RealtimeArrival{},
	}
	for _, c := range idx.CallsAtStop(stopID) {
		report.Arrivals = append(report.Arrivals, c.Realtime(nil))
	}
	return formatter.WriteJSONIndent(out, report)
}
