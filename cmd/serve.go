package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sevamap/coverage-cli/internal/diagram"
	"github.com/sevamap/coverage-cli/internal/engine"
	"github.com/sevamap/coverage-cli/internal/voronoi"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the coverage query server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		eng, closer, err := initEngine(ctx, "")
		if err != nil {
			return err
		}
		defer closer()

		limiter := newClientLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst)
		mux := buildMux(eng)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: limiter.middleware(mux),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	mu      sync.Mutex
	clients map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func newClientLimiter(limit rate.Limit, burst int) *clientLimiter {
	if limit <= 0 {
		limit = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &clientLimiter{
		clients: make(map[string]*rate.Limiter),
		limit:   limit,
		burst:   burst,
	}
}

func (cl *clientLimiter) allow(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	cl.mu.Lock()
	lim, ok := cl.clients[host]
	if !ok {
		lim = rate.NewLimiter(cl.limit, cl.burst)
		cl.clients[host] = lim
	}
	cl.mu.Unlock()

	return lim.Allow()
}

func (cl *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cl.allow(r.RemoteAddr) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// buildMux wires the query endpoints. Split out so handler tests can
// exercise routing without a listener.
func buildMux(eng *engine.Engine) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /compute", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Seeds  []diagram.FacilitySeed `json:"seeds"`
			Region string                 `json:"region"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Region == "" {
			req.Region = "nationwide"
		}

		d, err := eng.Compute(r.Context(), req.Seeds, req.Region)
		if err != nil {
			writeComputeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":      d.ID,
			"summary": d.Summarize(),
			"notes":   d.Notes,
		})
	})

	mux.HandleFunc("GET /query/point", func(w http.ResponseWriter, r *http.Request) {
		lng, lat, err := lngLatParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f, ok, err := eng.PointQuery(lng, lat)
		if err != nil {
			writeQueryError(w, err)
			return
		}
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"covered": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"covered": true, "face": f})
	})

	mux.HandleFunc("GET /query/range", func(w http.ResponseWriter, r *http.Request) {
		var box [4]float64
		for i, key := range []string{"min_lng", "min_lat", "max_lng", "max_lat"} {
			v, err := floatParam(r, key)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			box[i] = v
		}
		faces, err := eng.RangeQuery(box[0], box[1], box[2], box[3])
		if err != nil {
			writeQueryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, faces)
	})

	mux.HandleFunc("GET /query/nearest", func(w http.ResponseWriter, r *http.Request) {
		lng, lat, err := lngLatParams(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		k := intParam(r, "k", 3)
		faces, err := eng.KNearest(lng, lat, k)
		if err != nil {
			writeQueryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, faces)
	})

	mux.HandleFunc("GET /faces/{id}/adjacent", func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "face id must be an integer")
			return
		}
		faces, err := eng.Adjacent(id)
		if err != nil {
			writeQueryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, faces)
	})

	mux.HandleFunc("GET /query/top", func(w http.ResponseWriter, r *http.Request) {
		n := intParam(r, "n", 5)
		faces, err := eng.TopByPopulation(n)
		if err != nil {
			writeQueryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, faces)
	})

	mux.HandleFunc("GET /summary", func(w http.ResponseWriter, r *http.Request) {
		s, err := eng.Summary()
		if err != nil {
			writeQueryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	})

	mux.HandleFunc("GET /analytics", func(w http.ResponseWriter, r *http.Request) {
		report, err := eng.Analytics()
		if err != nil {
			writeQueryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	})

	return mux
}

func lngLatParams(r *http.Request) (float64, float64, error) {
	lng, err := floatParam(r, "lng")
	if err != nil {
		return 0, 0, err
	}
	lat, err := floatParam(r, "lat")
	if err != nil {
		return 0, 0, err
	}
	return lng, lat, nil
}

func floatParam(r *http.Request, key string) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, eris.Errorf("missing query parameter %q", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, eris.Errorf("query parameter %q must be a number", key)
	}
	return v, nil
}

func intParam(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeQueryError maps engine query failures to HTTP statuses. The only
// expected failure before the first compute is a missing index.
func writeQueryError(w http.ResponseWriter, err error) {
	if eris.Is(err, engine.ErrIndexNotBuilt) {
		writeError(w, http.StatusConflict, "no diagram computed yet")
		return
	}
	zap.L().Error("query failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeComputeError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, voronoi.ErrInsufficientSeeds),
		eris.Is(err, engine.ErrClipRegionNotFound):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		zap.L().Error("compute failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
