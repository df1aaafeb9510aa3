package stoparrivals

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/theoremus-urban-solutions/stop-arrivals/config"
)

// upstream fakes the transit API with one planned and one realtime row
// around the real clock.
func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	now := time.Now().UTC()
	iso := func(min int) string { return now.Add(time.Duration(min) * time.Minute).Format(time.RFC3339) }

	mux := http.NewServeMux()
	mux.HandleFunc("/gtfs/stops", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		assert.Equal(t, "12345", r.URL.Query().Get("stop_code"))
		_ = json.NewEncoder(w).Encode([]map[string]any{{"stop_id": "S1", "stop_code": "12345", "stop_name": "Central"}})
	})
	mux.HandleFunc("/gtfs/planned_stop_times", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "S1", r.URL.Query().Get("stop_id"))
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{
			{"id": "R1", "departure_time": iso(10), "gtfs_route__route_short_name": "5", "gtfs_ride__journey_ref": "J1"},
			{"id": "R2", "departure_time": iso(20), "gtfs_route__route_short_name": "18"},
		}})
	})
	mux.HandleFunc("/siri/ride_stops", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"gtfs_ride_stop_id": "R1", "expected_arrival_time": iso(14), "aimed_arrival_time": iso(10), "recorded_at_time": iso(0)},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestApp_EndToEnd(t *testing.T) {
	srv := upstream(t)
	cfg := &config.AppConfig{
		API:       config.APIConfig{BaseURL: srv.URL, APIKey: "k"},
		Favorites: config.FavoritesConfig{DBPath: filepath.Join(t.TempDir(), "fav.db")},
	}
	app, err := NewApp(context.Background(), cfg, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer app.Close()

	h := app.Handler()
	rec := do(t, h, http.MethodGet, "/api/stops/12345/arrivals", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	rows := body["arrivals"].([]any)
	require.Len(t, rows, 2)
	first := rows[0].(map[string]any)
	assert.Equal(t, "5", first["line"])
	assert.Equal(t, "id", first["tier"])
	assert.Equal(t, float64(4), first["delayMinutes"])
	assert.Equal(t, "late", first["delayStatus"])
	assert.Equal(t, "none", rows[1].(map[string]any)["tier"])

	rec = do(t, h, http.MethodGet, "/metrics", "")
	assert.Contains(t, rec.Body.String(), `stoparrivals_lookup_cycles_total{outcome="ok"} 1`)
	assert.Contains(t, rec.Body.String(), `stoparrivals_match_tier_total{tier="id"} 1`)
}

func TestApp_FavoritesSurviveRestart(t *testing.T) {
	srv := upstream(t)
	cfg := &config.AppConfig{
		API:       config.APIConfig{BaseURL: srv.URL, APIKey: "k"},
		Favorites: config.FavoritesConfig{DBPath: filepath.Join(t.TempDir(), "fav.db")},
	}
	app, err := NewApp(context.Background(), cfg, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	rec := do(t, app.Handler(), http.MethodPost, "/api/favorites/lines/5/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	app.Close()

	app, err = NewApp(context.Background(), cfg, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer app.Close()
	assert.True(t, app.Favorites.Has("5"))
}

func TestApp_BoardOverService(t *testing.T) {
	srv := upstream(t)
	cfg := &config.AppConfig{API: config.APIConfig{BaseURL: srv.URL, APIKey: "k"}}
	app, err := NewApp(context.Background(), cfg, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer app.Close()

	b := app.NewBoard(false)
	defer b.Close()
	snap, err := b.Load(context.Background(), "12345")
	require.NoError(t, err)
	assert.Len(t, snap.Result.Arrivals, 2)
}

func TestNewApp_UnknownFeed(t *testing.T) {
	cfg := &config.AppConfig{API: config.APIConfig{BaseURL: "http://localhost"}}
	_, err := NewApp(context.Background(), cfg, "nope", zaptest.NewLogger(t))
	assert.Error(t, err)
}
