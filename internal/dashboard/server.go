// Package dashboard serves the analytics table as a read-only JSON API.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/KaramelBytes/crimeloom/internal/agent"
	"github.com/KaramelBytes/crimeloom/internal/analytics"
	"github.com/KaramelBytes/crimeloom/internal/config"
	"github.com/KaramelBytes/crimeloom/internal/records"
	"github.com/KaramelBytes/crimeloom/internal/table"
)

// Municipality is one entry of /api/municipios.
type Municipality struct {
	Code       int64  `json:"codigo_municipio"`
	Name       string `json:"municipio"`
	Department string `json:"departamento,omitempty"`
}

// Server holds the loaded analytics table and its derived views.
type Server struct {
	table      *table.Table
	categories []string
	facts      []analytics.Fact
	agent      *agent.Agent
	munis      []Municipality
	limiter    *rate.Limiter
	log        *zap.Logger
}

// New indexes the analytics table for serving.
func New(t *table.Table, categories []string, c config.Serve, log *zap.Logger) (*Server, error) {
	facts, err := analytics.Long(t, categories)
	if err != nil {
		return nil, err
	}
	munis, err := municipalities(t)
	if err != nil {
		return nil, err
	}
	perSecond, burst := c.AskPerSecond, c.AskBurst
	if perSecond <= 0 {
		perSecond = 2
	}
	if burst <= 0 {
		burst = 5
	}
	return &Server{
		table:      t,
		categories: categories,
		facts:      facts,
		agent:      agent.New(facts),
		munis:      munis,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), burst),
		log:        log,
	}, nil
}

func municipalities(t *table.Table) ([]Municipality, error) {
	code, err := t.Col(records.ColCode)
	if err != nil {
		return nil, err
	}
	name, err := t.Col(records.ColMunicipality)
	if err != nil {
		return nil, err
	}
	dept, _ := t.Column(records.ColDepartment)
	seen := map[int64]bool{}
	var out []Municipality
	for i := 0; i < t.NumRows(); i++ {
		c := code.Int(i)
		if !c.Valid || seen[c.V] {
			continue
		}
		seen[c.V] = true
		m := Municipality{Code: c.V, Name: name.Text(i)}
		if dept != nil {
			m.Department = dept.Text(i)
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Routes returns the API router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/municipios", s.listMunicipalities)
		r.Get("/resumen", s.summary)
		r.Get("/series/{codigo}", s.series)
		r.Get("/geo", s.geo)
		r.With(s.rateLimit).Get("/ask", s.ask)
		r.Get("/predict", s.predict)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "too many questions, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("dashboard listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// latestYear is the last year with crime facts, or zero.
func (s *Server) latestYear() int64 {
	var y int64
	for _, f := range s.facts {
		y = max(y, f.Year)
	}
	return y
}

func (s *Server) column(name string) *table.Column {
	c, _ := s.table.Column(name)
	return c
}
