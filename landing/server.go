// Package landing serves the satellite proximity page and proxies its API calls to N2YO so
// the browser never hits the cross-origin API directly.
package landing

import (
	"context"
	"embed"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/k3a/html2text"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/nvr-ai/debris/logging"
)

// DefaultUpstream is the N2YO satellite API root.
const DefaultUpstream = "https://api.n2yo.com/rest/v1/satellite"

//go:embed static
var staticFiles embed.FS

const (
	maxUpstreamBody = 4 << 20
	shutdownTimeout = 5 * time.Second
)

// Config configures the landing server.
type Config struct {
	// Addr is the listen address, ":8080" by default.
	Addr string
	// Dir holds the static page; the built-in page is served when empty.
	Dir string
	// Upstream is the API root that /api/<rest> maps to.
	Upstream string
	// CacheTTL is how long successful upstream responses are reused; 0 disables caching.
	CacheTTL time.Duration
	// RateLimit is upstream requests per second; 0 means unlimited.
	RateLimit float64
	Burst     int
	// Timeout bounds each upstream request.
	Timeout time.Duration
	// Client is used for upstream calls; a client with Timeout when nil.
	Client *http.Client
}

// Server is the landing HTTP server.
type Server struct {
	cfg      Config
	router   *mux.Router
	registry *prometheus.Registry
	metrics  *Metrics
	cache    *cache.Cache
	limiter  *rate.Limiter
	client   *http.Client
	log      *slog.Logger
}

type cachedResponse struct {
	contentType string
	body        []byte
}

// NewServer builds the router.
//
// Arguments:
//   - cfg: The server configuration.
//
// Returns:
//   - *Server: The server, ready for ListenAndServe or Handler.
//   - error: If the metrics cannot be registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Upstream == "" {
		cfg.Upstream = DefaultUpstream
	}
	cfg.Upstream = strings.TrimRight(cfg.Upstream, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	s := &Server{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		client:   cfg.Client,
		log:      logging.Module("landing"),
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.CacheTTL > 0 {
		s.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	s.limiter = rate.NewLimiter(limit, max(cfg.Burst, 1))

	m, err := NewMetrics(s.registry)
	if err != nil {
		return nil, errors.Wrap(err, "registering metrics")
	}
	s.metrics = m

	static, err := staticFS(cfg.Dir)
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	r.Use(s.requestID)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.PathPrefix("/api/").HandlerFunc(s.handleProxy).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(s.count("static", http.FileServer(static))).Methods(http.MethodGet, http.MethodHead)
	s.router = r
	return s, nil
}

func staticFS(dir string) (http.FileSystem, error) {
	if dir != "" {
		return http.Dir(dir), nil
	}
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		return nil, errors.Wrap(err, "opening built-in page")
	}
	return http.FS(sub), nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", s.cfg.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener, which it closes.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.Timeout + 10*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info("serving", "addr", ln.Addr().String(), "dir", s.cfg.Dir, "upstream", s.cfg.Upstream)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutting down")
	}
	<-errCh
	s.log.Info("stopped")
	return nil
}

type ctxKey struct{}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) count(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.requests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
	})
}

// handleProxy maps /api/<rest>?<query> to <upstream>/<rest>?<query>.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.EscapedPath(), "/api/")
	target := s.cfg.Upstream + "/" + rest
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	log := s.log.With("request_id", requestIDFrom(r.Context()), "path", rest)

	w.Header().Set("Access-Control-Allow-Origin", "*")

	if s.cache != nil {
		if v, ok := s.cache.Get(target); ok {
			s.metrics.cache.WithLabelValues("hit").Inc()
			c := v.(cachedResponse)
			w.Header().Set("X-Cache", "HIT")
			s.writeBody(w, http.StatusOK, c.contentType, c.body)
			return
		}
		s.metrics.cache.WithLabelValues("miss").Inc()
	}

	if !s.limiter.Allow() {
		log.Warn("upstream rate limit exceeded")
		s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded, retry later")
		return
	}

	start := time.Now()
	body, err := s.fetch(r.Context(), target)
	if err != nil {
		s.metrics.upstream.WithLabelValues("error").Observe(time.Since(start).Seconds())
		log.Error("upstream request failed", "error", err)
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.metrics.upstream.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	if s.cache != nil {
		s.cache.Set(target, cachedResponse{contentType: "application/json", body: body}, cache.DefaultExpiration)
	}
	log.Debug("proxied", "bytes", len(body), "took", time.Since(start))
	s.writeBody(w, http.StatusOK, "application/json", body)
}

// fetch returns the upstream body of a 2xx response. Other statuses become errors carrying
// the response text, with HTML reduced to plain text.
func (s *Server) fetch(ctx context.Context, target string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return nil, errors.Wrap(err, "reading upstream response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if strings.Contains(resp.Header.Get("Content-Type"), "html") {
			msg = strings.TrimSpace(html2text.HTML2Text(msg))
		}
		if len(msg) > 200 {
			msg = msg[:200]
		}
		if msg == "" {
			return nil, errors.Errorf("upstream returned %s", resp.Status)
		}
		return nil, errors.Errorf("upstream returned %s: %s", resp.Status, msg)
	}
	return body, nil
}

func (s *Server) writeBody(w http.ResponseWriter, code int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(code)
	_, _ = w.Write(body)
	s.metrics.requests.WithLabelValues("api", strconv.Itoa(code)).Inc()
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
	s.metrics.requests.WithLabelValues("api", strconv.Itoa(code)).Inc()
}
