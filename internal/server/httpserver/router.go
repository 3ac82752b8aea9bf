package httpserver

import (
	"log/slog"
	"net/http"
	"time"
)

// Status summarizes the server for /healthz.
type Status struct {
	Status      string `json:"status"`
	Version     string `json:"version,omitempty"`
	Keys        int    `json:"keys"`
	Connections int    `json:"connections"`
	LastSave    int64  `json:"last_save,omitempty"`
	Time        string `json:"time"`
}

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Version is reported by /healthz.
	Version string

	// Keys returns the key space size.
	Keys func() int

	// Connections returns the number of open RESP sessions.
	Connections func() int

	// LastSave returns the last successful save time, or the zero time.
	LastSave func() time.Time

	// Metrics serves /metrics. Nil disables the endpoint.
	Metrics http.Handler

	// Stream serves /ws. Nil disables the endpoint.
	Stream StreamServer

	Logger *slog.Logger
}

// NewRouter creates the HTTP handler with all routes and middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", healthHandler(cfg))
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}
	if cfg.Stream != nil {
		mux.Handle("GET /ws", websocketHandler(cfg.Stream, log))
	}

	// Order: Recover -> RequestID -> AccessLog -> routes
	return Chain(mux, Recover(log), RequestID(), AccessLog(log))
}

func healthHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		st := Status{
			Status:  "ok",
			Version: cfg.Version,
			Time:    time.Now().UTC().Format(time.RFC3339),
		}
		if cfg.Keys != nil {
			st.Keys = cfg.Keys()
		}
		if cfg.Connections != nil {
			st.Connections = cfg.Connections()
		}
		if cfg.LastSave != nil {
			if t := cfg.LastSave(); !t.IsZero() {
				st.LastSave = t.Unix()
			}
		}
		writeJSON(w, http.StatusOK, st)
	}
}
