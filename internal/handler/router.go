package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/encyclo/internal/llm"
	"github.com/hitoshi/encyclo/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	AdminToken        string

	// 記事
	TopicService TopicServiceInterface

	// 投稿とレビュー
	ModerationGateway ModerationGatewayInterface
	AdminGateway      AdminGatewayInterface

	// 監視
	DB             Pinger
	LLMProvider    llm.Provider
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → RateLimit(General)
//
// 監視ルート（/health, /metrics）はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	topicHandler := NewTopicHandler(deps.TopicService)
	moderationHandler := NewModerationHandler(deps.ModerationGateway)
	adminHandler := NewAdminHandler(deps.AdminGateway)
	healthHandler := NewHealthHandler(deps.DB, deps.LLMProvider)

	// --- 監視ルート ---

	r.Get("/health", healthHandler.Check)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 公開APIルート ---
	// ミドルウェアスタック: RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 記事閲覧
		r.Route("/api/topics", func(r chi.Router) {
			r.Get("/", topicHandler.ListTopics)
			r.Get("/{topic}", topicHandler.GetTopic)
		})

		// 投稿（投稿専用レート制限を追加）
		r.With(deps.RateLimiter.SubmissionMiddleware()).Post("/report", moderationHandler.Report)
		r.With(deps.RateLimiter.SubmissionMiddleware()).Post("/add_info", moderationHandler.AddInfo)
	})

	// --- 管理ルート ---
	// ミドルウェアスタック: RateLimit(General) → AdminAuth
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewAdminAuthMiddleware(deps.AdminToken))

		r.Route("/admin", func(r chi.Router) {
			r.Get("/pending", adminHandler.ListPending)
			r.Post("/review_action", adminHandler.ReviewAction)
			r.Get("/stats", adminHandler.GetStats)
		})
	})

	return r
}
