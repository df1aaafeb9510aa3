package stoparrivals

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/stop-arrivals/favorites"
	"github.com/theoremus-urban-solutions/stop-arrivals/feed"
	"github.com/theoremus-urban-solutions/stop-arrivals/formatter"
	"github.com/theoremus-urban-solutions/stop-arrivals/lookup"
	"github.com/theoremus-urban-solutions/stop-arrivals/utils"
)

// Looker runs one lookup cycle.
type Looker interface {
	Lookup(ctx context.Context, code string) (*lookup.Result, error)
}

type APIOptions struct {
	Looker      Looker
	Stops       favorites.Store
	Lines       favorites.LineSet
	Metrics     http.Handler
	Checks      []HealthCheck
	Strategies  []string
	CORSOrigins []string
	Logger      *zap.Logger
}

// API serves the HTTP endpoints.
type API struct {
	looker     Looker
	stops      favorites.Store
	lines      favorites.LineSet
	metrics    http.Handler
	checks     []HealthCheck
	strategies []string
	origins    []string
	logger     *zap.Logger
	now        func() time.Time
}

func NewAPI(opts APIOptions) *API {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &API{
		looker:     opts.Looker,
		stops:      opts.Stops,
		lines:      opts.Lines,
		metrics:    opts.Metrics,
		checks:     opts.Checks,
		strategies: opts.Strategies,
		origins:    opts.CORSOrigins,
		logger:     opts.Logger,
		now:        utils.Now,
	}
}

// Routes builds the router.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Get("/api/health", a.handleHealth)
	r.Get("/api/stops/{code}/arrivals", a.handleArrivals)

	r.Route("/api/favorites", func(r chi.Router) {
		r.Get("/stops", a.handleListStops)
		r.Put("/stops/{id}", a.handlePutStop)
		r.Delete("/stops/{id}", a.handleDeleteStop)
		r.Get("/lines", a.handleListLines)
		r.Post("/lines/{label}/toggle", a.handleToggleLine)
	})

	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics)
	}
	return r
}

// handleArrivals handles GET /api/stops/{code}/arrivals?favoritesOnly=true
func (a *API) handleArrivals(w http.ResponseWriter, r *http.Request) {
	favoritesOnly, err := parseBoolParam("favoritesOnly", r.URL.Query().Get("favoritesOnly"), false)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.looker.Lookup(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	rows := res.Arrivals
	if favoritesOnly {
		rows = lookup.FilterLines(res.Arrivals, a.lines)
	}
	isFavorite := favorites.ContainsCode(a.stops, res.Stop.Code)
	board := formatter.BuildBoard(res, rows, a.now(), isFavorite)

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, board)
}

type stopsResponse struct {
	Stops []favorites.Stop `json:"stops"`
}

func (a *API) handleListStops(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stopsResponse{Stops: a.stops.List()})
}

type putStopRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// handlePutStop handles PUT /api/favorites/stops/{id}; it upserts.
func (a *API) handlePutStop(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	var req putStopRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		a.writeError(w, r, &QueryError{Msg: "Body must be a JSON object with code and name."})
		return
	}
	code, err := feed.ValidateStopCode(req.Code)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if id == "" {
		a.writeError(w, r, &QueryError{Msg: "Stop id must not be empty."})
		return
	}
	saved := a.stops.Add(favorites.Stop{ID: id, Code: code, Name: strings.TrimSpace(req.Name)})
	writeJSON(w, http.StatusOK, saved)
}

func (a *API) handleDeleteStop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !a.stops.Remove(id) {
		a.writeError(w, r, feed.NewError(feed.KindNotFound, "remove favorite", &QueryError{Msg: "stop " + id + " is not a favorite"}))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type linesResponse struct {
	Lines []string `json:"lines"`
}

func (a *API) handleListLines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, linesResponse{Lines: a.lines.Lines()})
}

type toggleResponse struct {
	Label    string `json:"label"`
	Favorite bool   `json:"favorite"`
}

func (a *API) handleToggleLine(w http.ResponseWriter, r *http.Request) {
	label, err := normalizeLabel(chi.URLParam(r, "label"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{Label: label, Favorite: a.lines.Toggle(label)})
}
