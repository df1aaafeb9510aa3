package stoparrivals

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/theoremus-urban-solutions/stop-arrivals/feed"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error onto an HTTP status and a kind label.
func statusFor(err error) (int, string) {
	switch kind := feed.KindOf(err); kind {
	case feed.KindInvalidInput:
		return http.StatusBadRequest, string(kind)
	case feed.KindNotFound:
		return http.StatusNotFound, string(kind)
	case feed.KindTransport, feed.KindDecode:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, string(kind)
		}
		return http.StatusBadGateway, string(kind)
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return http.StatusBadRequest, string(feed.KindInvalidInput)
	}
	if errors.Is(err, context.Canceled) {
		// client went away
		return 499, "canceled"
	}
	return http.StatusInternalServerError, "internal"
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	if status >= 500 {
		a.logger.Warn("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, errorResponse{Error: errorBody{Kind: kind, Message: err.Error()}})
}
