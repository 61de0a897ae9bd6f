package http

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"finassist/internal/cache"
	"finassist/internal/core"
	applog "finassist/internal/log"
	"finassist/internal/middleware/ratelimit"
	"finassist/internal/middleware/security"
	"finassist/internal/middleware/trace"
	"finassist/internal/services"
	appweb "finassist/web"
)

// Services are the application operations the handlers call.
type Services struct {
	Transactions *services.TransactionService
	Goals        *services.GoalService
	Journal      *services.JournalService
	// Ready reports storage health for /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

// Options tune the server; zero values use defaults.
type Options struct {
	RateLimitPerMinute int
	Logger             *slog.Logger
	// Now is the clock used for "today"; tests pin it.
	Now func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	svc       Services
	now       func() time.Time

	limiter *ratelimit.Limiter
	janitor *cache.Janitor

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires routes and middleware.
func NewServer(addr string, svc Services, opts Options) (*Server, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		templates: t,
		svc:       svc,
		now:       opts.Now,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		janitor:   cache.NewJanitor(svc.Transactions.SummaryCache()),
	}
	s.janitor.Start(10 * time.Minute)

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssets(3600)(static))
	} else {
		opts.Logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /{$}", s.handleIndex)

	mux.HandleFunc("/income-expenses", s.handleIncomeExpenses)
	mux.HandleFunc("/income-expenses/delete", s.handleDeleteTransaction)

	mux.HandleFunc("/transactions", s.handleJournal)

	mux.HandleFunc("/goals", s.handleGoals)
	mux.HandleFunc("/goals/update", s.handleUpdateGoal)
	mux.HandleFunc("GET /goals/suggest", s.handleSuggestContribution)
	mux.HandleFunc("GET /goals/export.csv", s.handleExportGoals)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(security.ClientIP, nil)(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = trace.NewMiddleware(security.ClientIP).Middleware(handler)
	handler = applog.Middleware(applog.Wrap(opts.Logger, applog.ComponentHTTP))(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s, nil
}

// Shutdown stops background loops and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.janitor.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) today() core.Date {
	return core.DateOf(s.now())
}

var templateFuncs = template.FuncMap{
	"money":           func(m core.Money) string { return m.Format() },
	"percent":         func(f float64) string { return fmt.Sprintf("%.1f%%", f*100) },
	"width":           func(f float64) int { return int(math.Round(f * 100)) },
	"kinds":           func() []core.Kind { return core.Kinds },
	"frequencies":     func() []core.Frequency { return core.Frequencies },
	"goalFrequencies": func() []core.Frequency { return core.GoalFrequencies },
}

// render executes name into a buffer so template errors become a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any, b *HTMXResponseBuilder) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed", "template", name, "error", err)
		InternalServerError("Something went wrong, please retry").Write(w)
		return
	}
	if b == nil {
		b = NewHTMXResponse()
	}
	b.Header("Content-Type", "text/html; charset=utf-8").Body(buf.Bytes()).Write(w)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// fail logs err and writes the mapped error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	resp := ErrorFor(err)
	level := slog.LevelWarn
	if resp.statusCode >= 500 {
		level = slog.LevelError
	}
	applog.FromContext(r.Context()).Log(r.Context(), level, msg, "error", err, "status_code", resp.statusCode)
	resp.Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.svc.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "index.html", struct{ Title string }{"Personal Finance Assistant"}, nil)
}
