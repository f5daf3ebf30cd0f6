// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/encyclo/internal/article"
	"github.com/hitoshi/encyclo/internal/cache"
	"github.com/hitoshi/encyclo/internal/config"
	"github.com/hitoshi/encyclo/internal/content"
	"github.com/hitoshi/encyclo/internal/database"
	"github.com/hitoshi/encyclo/internal/handler"
	"github.com/hitoshi/encyclo/internal/llm"
	"github.com/hitoshi/encyclo/internal/logger"
	"github.com/hitoshi/encyclo/internal/metrics"
	"github.com/hitoshi/encyclo/internal/middleware"
	"github.com/hitoshi/encyclo/internal/moderation"
	"github.com/hitoshi/encyclo/internal/repository"
	"github.com/hitoshi/encyclo/internal/review"
	"github.com/hitoshi/encyclo/internal/security"
)

// sourceCheckTimeout は出典URL到達性チェック1件あたりのタイムアウト。
const sourceCheckTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にもログを使えるよう、まずデフォルトレベルで初期化する
	logger.SetupDefault(w, "info")

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("llm_provider", cfg.LLMProvider),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリと投稿ストアの初期化
	// 投稿ストアはPostgreSQL実装を使う。複数プロセス構成でも
	// 同一IPの投稿履歴を共有し、不正利用フラグの判定精度を保つため。
	articleRepo := repository.NewPostgresArticleRepo(db)
	submissionStore := repository.NewPostgresSubmissionStore(db)

	// 3. LLMプロバイダの初期化（未設定の場合はnil = LLM機能無効）
	provider, err := llm.NewProvider(llm.Config{
		Provider:  cfg.LLMProvider,
		Model:     cfg.LLMModel,
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OllamaBaseURL,
		Timeout:   cfg.LLMTimeout,
		MaxTokens: cfg.LLMMaxTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize LLM provider: %w", err)
	}
	if provider == nil {
		slog.Warn("LLMプロバイダが未設定のため、記事の生成と投稿の反映は無効です")
	}

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. 記事サービスの構築
	processor := content.NewProcessor(security.NewHTMLSanitizer())
	articleCache := cache.NewArticleCache(cfg.CacheTTL)
	articleService := article.NewService(
		articleRepo, provider, processor, articleCache, collector,
		cfg.ArticleMaxAge, cfg.LLMMaxTokens,
	)

	// 6. モデレーションゲートウェイの構築
	queueConfig := review.DefaultQueueConfig()
	queueConfig.Window = cfg.ReviewWindow
	queue := review.NewQueue(submissionStore, queueConfig)

	validator := security.NewFeedbackValidator(security.NewInjectionDetector())
	gateway := moderation.NewGateway(
		validator, security.NewSourceGuard(), queue, articleService, collector,
		moderation.Config{
			SourceCheckEnabled: cfg.SourceCheckEnabled,
			SourceCheckTimeout: sourceCheckTimeout,
		},
	)

	// 7. ルーターの構築（configのレート値はreq/min単位なのでreq/secに変換）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.SubmissionRate = rate.Limit(float64(cfg.RateLimitSubmission) / 60.0)
	rateLimiterCfg.SubmissionBurst = cfg.RateLimitSubmission

	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		AdminToken:        cfg.AdminToken,

		TopicService: articleService,

		ModerationGateway: gateway,
		AdminGateway:      gateway,

		DB:             db,
		LLMProvider:    provider,
		MetricsHandler: metrics.Handler(registry),
	})

	// 8. レビュー済み投稿のクリーンアップジョブを日次でバックグラウンド実行
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	cleanupJob := review.NewCleanupJob(db, slog.Default())
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(cleanupCtx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(cleanupCtx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // 記事生成はLLM呼び出しを待つため長めに取る
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
