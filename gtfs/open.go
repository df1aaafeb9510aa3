package gtfs

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// OpenOptions selects where the static feed comes from. CachePath, when set, is
// tried first and written after a successful parse.
type OpenOptions struct {
	URL        string
	Path       string
	CachePath  string
	HTTPClient *http.Client
}

// Open loads an index from cache, a local zip or a URL, in that order.
func Open(ctx context.Context, opts OpenOptions, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CachePath != "" {
		idx, err := LoadCacheFile(opts.CachePath)
		if err == nil {
			logger.Info("loaded GTFS index from cache", zap.String("path", opts.CachePath))
			return idx, nil
		}
		logger.Debug("GTFS cache miss", zap.String("path", opts.CachePath), zap.Error(err))
	}

	var (
		idx *Index
		err error
	)
	switch {
	case opts.Path != "":
		idx, err = LoadFile(opts.Path)
	case opts.URL != "":
		var data []byte
		data, err = Fetch(ctx, opts.HTTPClient, opts.URL)
		if err == nil {
			idx, err = NewIndexFromBytes(data)
		}
	default:
		return nil, fmt.Errorf("no GTFS source configured")
	}
	if err != nil {
		return nil, err
	}
	logger.Info("GTFS index built",
		zap.Int("stops", len(idx.Stops)),
		zap.Int("trips", len(idx.Trips)),
		zap.String("timezone", idx.AgencyTimezone))

	if opts.CachePath != "" {
		if err := SaveFile(idx, opts.CachePath); err != nil {
			logger.Warn("failed to write GTFS cache", zap.String("path", opts.CachePath), zap.Error(err))
		}
	}
	return idx, nil
}
