package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/bookshelf/internal/middleware"
)

// HealthChecker はDB疎通確認のインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionVerifier   middleware.SessionVerifier
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	Cookie            middleware.CookieConfig
	BaseURL           string

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// ドメイン
	AuthService      AuthServiceInterface
	FollowingService FollowingServiceInterface
	BookService      BookServiceInterface
	UserService      UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → CORS → SecurityHeaders → CSRF → Session → RateLimit(General)
//
// 認証ルート（/auth/*）、/health、/metricsはセッションを要求しない。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	csrfConfig := middleware.CSRFConfig{
		CookieSecure: deps.Cookie.Secure,
		CookieDomain: deps.Cookie.Domain,
	}
	sessionConfig := middleware.SessionConfig{Cookie: deps.Cookie}

	authHandler := NewAuthHandler(deps.AuthService, deps.SessionVerifier, AuthHandlerConfig{
		BaseURL: deps.BaseURL,
		Cookie:  deps.Cookie,
	})
	followingHandler := NewFollowingHandler(deps.FollowingService)
	bookHandler := NewBookHandler(deps.BookService)
	userHandler := NewUserHandler(deps.UserService, deps.Cookie)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig))

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/twitter/login", authHandler.Login)
		r.Get("/twitter/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.With(middleware.NewSessionMiddleware(deps.SessionVerifier, sessionConfig)).Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(csrfConfig))

		// フォロー一覧は未認証でも空配列を返し、レート制限超過時も200と空配列にする
		r.With(
			middleware.NewSessionMiddleware(deps.SessionVerifier,
				sessionConfig.WithUnauthorized(middleware.WriteEmptyListUnauthorized)),
			deps.RateLimiter.GeneralMiddlewareWith(followingHandler.RateLimited),
		).Get("/api/following", followingHandler.List)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.SessionVerifier, sessionConfig))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			// 本棚
			r.Route("/api/books", func(r chi.Router) {
				r.Get("/", bookHandler.List)
				r.With(deps.RateLimiter.BookWriteMiddleware()).Post("/", bookHandler.Add)

				r.Route("/{id}", func(r chi.Router) {
					r.Use(deps.RateLimiter.BookWriteMiddleware())
					r.Patch("/", bookHandler.ChangeStatus)
					r.Delete("/", bookHandler.Remove)
				})
			})

			// ユーザー管理
			r.Delete("/api/users/me", userHandler.Withdraw)
		})
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
