// Package article は百科事典記事の取得・生成・更新を提供する。
package article

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/encyclo/internal/cache"
	"github.com/hitoshi/encyclo/internal/content"
	"github.com/hitoshi/encyclo/internal/llm"
	"github.com/hitoshi/encyclo/internal/metrics"
	"github.com/hitoshi/encyclo/internal/model"
	"github.com/hitoshi/encyclo/internal/repository"
)

// timeNow はテストから現在時刻を差し替えるためのフック。
var timeNow = time.Now

// 生成パラメータ。
const (
	// generateTemperature は記事の生成・更新・フィードバック反映に使う温度。
	generateTemperature = 0.7
	// extractTemperature は関連トピック抽出に使う温度。出力の安定性を優先する。
	extractTemperature = 0.3
	// suggestionMaxTokens は関連トピック抽出の応答上限。
	suggestionMaxTokens = 300
)

// Service は記事操作のインターフェースを定義する。
type Service interface {
	// GetOrGenerate は記事を取得する。未生成の場合はLLMで生成し、
	// 保存期限を過ぎている場合は更新を試みる。
	// LLMが無効で記事が存在しない場合はAPIErrorを返す。
	GetOrGenerate(ctx context.Context, topicKey string) (*model.Article, error)

	// Exists は記事が保存済みかを返す。
	Exists(ctx context.Context, topicKey string) (bool, error)

	// ApplyFeedback はユーザーフィードバックをLLMで記事に反映する。
	// detailsとsourcesはサニタイズ済みであること。
	// LLMが反映不要と判断した場合は(false, nil)を返す。
	ApplyFeedback(ctx context.Context, topicKey string, action model.SubmissionAction, details string, sources []string) (bool, error)

	// ListTopics は保存済みの全トピックキーを返す。
	ListTopics(ctx context.Context) ([]string, error)
}

// articleService はServiceの実装。
type articleService struct {
	repo      repository.ArticleRepository
	provider  llm.Provider // nilの場合はLLM機能無効
	processor *content.Processor
	cache     *cache.ArticleCache
	collector metrics.MetricsCollector
	maxAge    time.Duration
	maxTokens int
}

// コンパイル時のインターフェース実装チェック
var _ Service = (*articleService)(nil)

// NewService は記事サービスの新しいインスタンスを生成する。
// providerはnilを許容し、その場合は既存記事の取得のみ可能になる。
func NewService(
	repo repository.ArticleRepository,
	provider llm.Provider,
	processor *content.Processor,
	articleCache *cache.ArticleCache,
	collector metrics.MetricsCollector,
	maxAge time.Duration,
	maxTokens int,
) *articleService {
	return &articleService{
		repo:      repo,
		provider:  provider,
		processor: processor,
		cache:     articleCache,
		collector: collector,
		maxAge:    maxAge,
		maxTokens: maxTokens,
	}
}

// GetOrGenerate は記事を取得する。キャッシュ→リポジトリ→LLM生成の順で解決する。
func (s *articleService) GetOrGenerate(ctx context.Context, topicKey string) (*model.Article, error) {
	now := timeNow()

	if cached, found := s.cache.Get(topicKey); found && !cached.IsOutdated(now, s.maxAge) {
		return cached, nil
	}

	stored, err := s.repo.FindByKey(ctx, topicKey)
	if err != nil {
		return nil, err
	}

	if stored != nil {
		if !stored.IsOutdated(now, s.maxAge) || s.provider == nil {
			// LLM無効時は古くても保存済みの記事を返す
			s.cache.Set(stored)
			return stored, nil
		}
		return s.refresh(ctx, stored)
	}

	if s.provider == nil {
		return nil, model.NewTopicNotFoundError(topicKey)
	}
	return s.generate(ctx, topicKey)
}

// generate は新規記事をLLMで生成して保存する。
func (s *articleService) generate(ctx context.Context, topicKey string) (*model.Article, error) {
	system, prompt := llm.BuildGeneratePrompt(topicKey)

	text, err := s.callLLM(ctx, system, prompt, generateTemperature, s.maxTokens)
	if err != nil {
		return nil, err
	}

	code, markdown := llm.ParseReply(text)
	if code != llm.ReplyAccepted || markdown == "" {
		slog.Warn("記事の生成がリプライコードで拒否されました",
			slog.String("topic", topicKey),
			slog.String("reply_code", code),
		)
		return nil, model.NewLLMUnavailableError()
	}

	article, err := s.buildArticle(ctx, topicKey, markdown)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, article); err != nil {
		return nil, err
	}
	s.cache.Set(article)
	s.collector.RecordArticleGenerated()

	slog.Info("記事を生成",
		slog.String("topic", topicKey),
		slog.Int("suggestions", len(article.Suggestions)),
	)
	return article, nil
}

// refresh は保存期限を過ぎた記事の更新をLLMに確認する。
// LLMが「変更なし」と応答した場合は既存内容のまま生成時刻だけ更新し、
// 次の期限まで再確認を抑制する。
func (s *articleService) refresh(ctx context.Context, stored *model.Article) (*model.Article, error) {
	system, prompt := llm.BuildUpdatePrompt(stored.TopicKey, stored.Markdown)

	text, err := s.callLLM(ctx, system, prompt, generateTemperature, s.maxTokens)
	if err != nil {
		// 更新に失敗しても既存記事は配信できる
		slog.Warn("記事の更新確認に失敗。既存記事を返します",
			slog.String("topic", stored.TopicKey),
			slog.String("error", err.Error()),
		)
		return stored, nil
	}

	code, markdown := llm.ParseReply(text)
	if code != llm.ReplyAccepted || markdown == "" {
		stored.GeneratedAt = timeNow()
		if err := s.repo.Save(ctx, stored); err != nil {
			return nil, err
		}
		s.cache.Set(stored)
		return stored, nil
	}

	article, err := s.buildArticle(ctx, stored.TopicKey, markdown)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, article); err != nil {
		return nil, err
	}
	s.cache.Set(article)
	s.collector.RecordArticleGenerated()

	slog.Info("記事を更新", slog.String("topic", stored.TopicKey))
	return article, nil
}

// ApplyFeedback はユーザーフィードバックをLLMで記事に反映する。
func (s *articleService) ApplyFeedback(ctx context.Context, topicKey string, action model.SubmissionAction, details string, sources []string) (bool, error) {
	stored, err := s.repo.FindByKey(ctx, topicKey)
	if err != nil {
		return false, err
	}
	if stored == nil {
		return false, model.NewTopicNotFoundError(topicKey)
	}
	if s.provider == nil {
		return false, model.NewLLMUnavailableError()
	}

	system, prompt := llm.BuildFeedbackPrompt(topicKey, stored.Markdown, action, details, sources)

	text, err := s.callLLM(ctx, system, prompt, generateTemperature, s.maxTokens)
	if err != nil {
		return false, err
	}

	code, markdown := llm.ParseReply(text)
	if code != llm.ReplyAccepted || markdown == "" {
		slog.Info("フィードバックは記事に反映されませんでした",
			slog.String("topic", topicKey),
			slog.String("action", string(action)),
			slog.String("reply_code", code),
		)
		return false, nil
	}

	article, err := s.buildArticle(ctx, topicKey, markdown)
	if err != nil {
		return false, err
	}

	if err := s.repo.Save(ctx, article); err != nil {
		return false, err
	}
	s.cache.Invalidate(topicKey)
	s.collector.RecordArticleGenerated()

	slog.Info("フィードバックを記事に反映",
		slog.String("topic", topicKey),
		slog.String("action", string(action)),
	)
	return true, nil
}

// Exists は記事が保存済みかを返す。
func (s *articleService) Exists(ctx context.Context, topicKey string) (bool, error) {
	if _, found := s.cache.Get(topicKey); found {
		return true, nil
	}
	stored, err := s.repo.FindByKey(ctx, topicKey)
	if err != nil {
		return false, err
	}
	return stored != nil, nil
}

// ListTopics は保存済みの全トピックキーを返す。
func (s *articleService) ListTopics(ctx context.Context) ([]string, error) {
	return s.repo.ListKeys(ctx)
}

// buildArticle はLLMが返したMarkdownから保存用の記事を組み立てる。
// 関連トピックの抽出→本文のリンク化→HTML変換→重複見出し除去の順で処理する。
// 関連トピックの抽出失敗は記事全体の失敗にしない。
func (s *articleService) buildArticle(ctx context.Context, topicKey, markdown string) (*model.Article, error) {
	suggestions := s.extractSuggestions(ctx, markdown)

	linked := content.LinkifyTopics(markdown, suggestions)

	rendered, err := s.processor.Render(linked)
	if err != nil {
		return nil, fmt.Errorf("記事HTMLの生成に失敗: %w", err)
	}
	rendered = content.RemoveDuplicateHeader(rendered, topicKey)

	return &model.Article{
		TopicKey:    topicKey,
		Content:     rendered,
		Markdown:    linked,
		Suggestions: suggestions,
		GeneratedAt: timeNow(),
	}, nil
}

// extractSuggestions は記事本文から関連トピック候補を抽出する。
// 失敗時は警告ログを残して空を返す。
func (s *articleService) extractSuggestions(ctx context.Context, markdown string) []string {
	system, prompt := llm.BuildSuggestionsPrompt(markdown)

	text, err := s.callLLM(ctx, system, prompt, extractTemperature, suggestionMaxTokens)
	if err != nil {
		slog.Warn("関連トピックの抽出に失敗", slog.String("error", err.Error()))
		return nil
	}

	return llm.ParseSuggestions(text)
}

// callLLM はプロバイダを呼び出し、レイテンシをメトリクスに記録する。
func (s *articleService) callLLM(ctx context.Context, system, prompt string, temperature float32, maxTokens int) (string, error) {
	start := time.Now()
	resp, err := s.provider.Generate(ctx, llm.Request{
		System:      system,
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	s.collector.RecordLLMLatency(s.provider.Name(), time.Since(start))
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}
