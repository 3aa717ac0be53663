package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	_ "github.com/rohits-web03/fileinpic/docs"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/rohits-web03/fileinpic/internal/api/handlers"
	"github.com/rohits-web03/fileinpic/internal/api/middleware"
	"github.com/rohits-web03/fileinpic/internal/config"
	"github.com/rohits-web03/fileinpic/internal/metrics"
	"github.com/rohits-web03/fileinpic/internal/services"
	"github.com/rs/cors"
)

// Options wires the router. ShareLimiter and LoginLimiter are created on
// demand when nil; callers that own them should Stop them on shutdown.
type Options struct {
	Config       config.Config
	Handler      *handlers.Handler
	Sessions     *services.SessionManager
	Metrics      *metrics.Collector
	Logger       *slog.Logger
	ShareLimiter *middleware.RateLimiter
	LoginLimiter *middleware.RateLimiter
	Proxies      middleware.TrustedProxies
}

func SetupRouter(o Options) http.Handler {
	cfg := o.Config
	h := o.Handler
	mux := http.NewServeMux()
	c := cors.New(cfg.CorsOptions())

	if o.ShareLimiter == nil {
		o.ShareLimiter = middleware.NewRateLimiter(cfg.ShareRateLimit, o.Proxies)
	}
	if o.LoginLimiter == nil {
		o.LoginLimiter = middleware.NewRateLimiter(10, o.Proxies)
	}

	// ---------- PUBLIC ROUTES ----------
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	mux.Handle("GET /metrics", o.Metrics.Handler())
	mux.HandleFunc("GET /docs/", httpSwagger.WrapHandler)

	mux.Handle("GET /api/share/info", o.ShareLimiter.Limit(http.HandlerFunc(h.ShareInfo)))
	mux.Handle("GET /api/share/download", o.ShareLimiter.Limit(http.HandlerFunc(h.ShareDownload)))

	mux.Handle("POST /api/login", o.LoginLimiter.Limit(http.HandlerFunc(h.Login)))
	mux.HandleFunc("POST /api/logout", h.Logout)
	mux.HandleFunc("GET /api/auth/google/login", h.GoogleLogin)
	mux.HandleFunc("GET /api/auth/google/callback", h.GoogleCallback)

	// ---------- OWNER ROUTES ----------
	var ownerMW []func(http.Handler) http.Handler
	if cfg.LoginRequired {
		ownerMW = append(ownerMW, middleware.RequireSession(o.Sessions))
	}
	owner := func(fn http.HandlerFunc, extra ...func(http.Handler) http.Handler) http.Handler {
		mws := append(append([]func(http.Handler) http.Handler{}, ownerMW...), extra...)
		return middleware.Chain(fn, mws...)
	}
	secret := middleware.RequireSecret(services.NewAccessGuard(cfg.AuthToken), "Auth-Token")

	mux.Handle("GET /api/files", owner(h.ListFiles))
	mux.Handle("POST /api/upload", owner(h.UploadFile, secret))
	mux.Handle("GET /api/download/{id}", owner(h.DownloadFile))
	mux.Handle("DELETE /api/delete/{id}", owner(h.DeleteFile, secret))
	mux.Handle("GET /api/file/share-details", owner(h.ShareDetails))
	mux.Handle("GET /api/config", owner(h.GetConfig))
	if cfg.ShareRequiresAuth {
		mux.Handle("POST /api/share", owner(h.CreateShare, secret))
	} else {
		mux.Handle("POST /api/share", owner(h.CreateShare))
	}

	// ---------- API V1 (X-API-Key) ----------
	apiKey := middleware.RequireSecret(services.NewAccessGuard(cfg.APIKey), "X-API-Key")
	mux.Handle("POST /api/v1/files/upload", apiKey(http.HandlerFunc(h.APIUpload)))
	mux.Handle("GET /api/v1/files/download/{id}", apiKey(http.HandlerFunc(h.DownloadFile)))
	mux.Handle("DELETE /api/v1/files/delete/{id}", apiKey(http.HandlerFunc(h.DeleteFile)))
	mux.HandleFunc("GET /api/v1/files/public/download/{id}", h.DownloadFile)

	// ---------- FRONT END ----------
	if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
		mux.Handle("GET /", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	o.Logger.Info("router initialized", "login_required", cfg.LoginRequired, "share_requires_auth", cfg.ShareRequiresAuth)
	return middleware.Chain(mux,
		middleware.Logger(o.Logger, o.Metrics, o.Proxies),
		middleware.Recover(o.Logger),
		c.Handler,
	)
}
