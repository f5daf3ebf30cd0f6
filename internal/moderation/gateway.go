// Package moderation はユーザー投稿の検査・受理・レビューの制御を提供する。
//
// ゲートウェイは以下の順で投稿を処理する:
// トピック検証 → フィードバック検査 → 出典URL検査 → サニタイズ →
// レビューキューへの追記 → フラグ判定 → 即時反映またはレビュー保留。
package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/encyclo/internal/article"
	"github.com/hitoshi/encyclo/internal/metrics"
	"github.com/hitoshi/encyclo/internal/model"
	"github.com/hitoshi/encyclo/internal/review"
	"github.com/hitoshi/encyclo/internal/security"
)

// SubmissionRequest はユーザー投稿1件の入力を表す。
// DetailsとSourcesは生入力のまま渡すこと。検査は生入力に対して行い、
// サニタイズは受理後にゲートウェイが適用する。
type SubmissionRequest struct {
	IPAddress string
	UserID    string
	Action    model.SubmissionAction
	Topic     string
	Details   string
	Sources   []string
}

// Result は投稿処理の結果を表す。
type Result struct {
	// Submission は受理された投稿。検証で拒否された場合はnil。
	Submission *model.Submission
	// Held はレビュー保留になったことを示す。
	Held bool
	// Applied はLLMが記事に反映したことを示す。
	Applied bool
}

// Gateway は投稿処理のインターフェースを定義する。
type Gateway interface {
	// Process は投稿を検査し、受理またはAPIErrorで拒否する。
	// フラグ付きの投稿はレビュー保留とし、記事には反映しない。
	Process(ctx context.Context, req SubmissionRequest) (*Result, error)

	// ApproveSubmission はレビュー待ちの投稿を承認し、記事への反映を実行する。
	ApproveSubmission(ctx context.Context, submissionID string) (*model.Submission, error)

	// RejectSubmission はレビュー待ちの投稿を却下する。
	RejectSubmission(ctx context.Context, submissionID, reason string) (*model.Submission, error)

	// PendingSubmissions はレビュー待ちの投稿を新しい順で返す。
	PendingSubmissions(ctx context.Context, limit int) ([]model.Submission, error)

	// Stats は投稿の集計情報を返す。
	Stats(ctx context.Context) (*model.SubmissionStats, error)
}

// Config はゲートウェイの動作設定を保持する。
type Config struct {
	// SourceCheckEnabled は出典URLの到達性チェックを行うか。
	// チェックはSSRF防止付きクライアントで行われる。
	SourceCheckEnabled bool
	// SourceCheckTimeout は到達性チェック1件あたりのタイムアウト。
	SourceCheckTimeout time.Duration
}

// gateway はGatewayの実装。
type gateway struct {
	validator   *security.FeedbackValidator
	sourceGuard security.SourceGuardService
	queue       *review.Queue
	articles    article.Service
	collector   metrics.MetricsCollector
	config      Config
	safeClient  *http.Client // 出典URL到達性チェック用。チェック無効時はnil
}

// コンパイル時のインターフェース実装チェック
var _ Gateway = (*gateway)(nil)

// NewGateway はゲートウェイの新しいインスタンスを生成する。
func NewGateway(
	validator *security.FeedbackValidator,
	sourceGuard security.SourceGuardService,
	queue *review.Queue,
	articles article.Service,
	collector metrics.MetricsCollector,
	config Config,
) *gateway {
	g := &gateway{
		validator:   validator,
		sourceGuard: sourceGuard,
		queue:       queue,
		articles:    articles,
		collector:   collector,
		config:      config,
	}
	if config.SourceCheckEnabled {
		timeout := config.SourceCheckTimeout
		if timeout == 0 {
			timeout = 5 * time.Second
		}
		g.safeClient = sourceGuard.NewSafeClient(timeout)
	}
	return g
}

// Process は投稿を検査し、受理またはAPIErrorで拒否する。
func (g *gateway) Process(ctx context.Context, req SubmissionRequest) (*Result, error) {
	topicKey, ok := security.ValidateTopicSlug(req.Topic)
	if !ok {
		return nil, model.NewInvalidTopicError()
	}

	exists, err := g.articles.Exists(ctx, topicKey)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, model.NewTopicNotFoundError(topicKey)
	}

	if valid, message := g.validator.Validate(req.Details, req.Sources); !valid {
		g.collector.RecordValidationRejection()
		if message == security.MsgFeedbackSuspicious || message == security.MsgSourceSuspicious {
			g.collector.RecordInjectionDetection()
		}
		return nil, model.NewValidationFailedError(message)
	}

	for _, source := range req.Sources {
		if err := g.sourceGuard.ValidateURL(source); err != nil {
			slog.Warn("出典URLを拒否",
				slog.String("topic", topicKey),
				slog.String("error", err.Error()),
			)
			return nil, model.NewInvalidSourceError()
		}
		if g.safeClient != nil {
			if err := g.checkSourceReachable(ctx, source); err != nil {
				slog.Warn("出典URLに到達できません",
					slog.String("topic", topicKey),
					slog.String("error", err.Error()),
				)
				return nil, model.NewInvalidSourceError()
			}
		}
	}

	// 検査を通過した入力のみをサニタイズしてLLM向けに保持する
	sanitized := security.SanitizeForPrompt(req.Details)
	sanitizedSources := make([]string, 0, len(req.Sources))
	for _, source := range req.Sources {
		sanitizedSources = append(sanitizedSources, security.SanitizeForPrompt(source))
	}

	submission, err := g.queue.Add(ctx, req.IPAddress, req.UserID, req.Action, topicKey, sanitized, sanitizedSources, false)
	if err != nil {
		return nil, err
	}

	g.collector.RecordSubmission(string(req.Action))
	if len(submission.Flags) > 0 {
		g.collector.RecordFlaggedSubmission()
	}

	if g.queue.ShouldRequireReview(submission) {
		slog.Info("投稿をレビュー保留",
			slog.String("submission_id", submission.ID),
			slog.Int("flag_count", len(submission.Flags)),
		)
		return &Result{Submission: submission, Held: true}, nil
	}

	applied, err := g.articles.ApplyFeedback(ctx, topicKey, req.Action, submission.Content, submission.Sources)
	if err != nil {
		return nil, err
	}

	// フラグなしで即時反映された投稿は承認済みとして記録する
	if _, err := g.queue.Approve(ctx, submission.ID); err != nil {
		return nil, err
	}

	return &Result{Submission: submission, Applied: applied}, nil
}

// ApproveSubmission はレビュー待ちの投稿を承認し、記事への反映を実行する。
// 投稿が存在しない、または終端状態の場合はAPIErrorを返す。
func (g *gateway) ApproveSubmission(ctx context.Context, submissionID string) (*model.Submission, error) {
	submission, err := g.queue.Find(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if submission == nil {
		return nil, model.NewSubmissionNotFoundError(submissionID)
	}

	ok, err := g.queue.Approve(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// pending以外からの遷移は許可しない
		return nil, model.NewSubmissionNotFoundError(submissionID)
	}

	// 保存済みの投稿内容はサニタイズ済みのため、そのまま反映に回せる
	applied, err := g.articles.ApplyFeedback(ctx, submission.Topic, submission.Action, submission.Content, submission.Sources)
	if err != nil {
		return nil, err
	}
	if !applied {
		slog.Warn("承認された投稿がLLMに反映されませんでした",
			slog.String("submission_id", submissionID),
			slog.String("topic", submission.Topic),
		)
	}

	return g.queue.Find(ctx, submissionID)
}

// RejectSubmission はレビュー待ちの投稿を却下する。
func (g *gateway) RejectSubmission(ctx context.Context, submissionID, reason string) (*model.Submission, error) {
	ok, err := g.queue.Reject(ctx, submissionID, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NewSubmissionNotFoundError(submissionID)
	}
	return g.queue.Find(ctx, submissionID)
}

// PendingSubmissions はレビュー待ちの投稿を新しい順で返す。
func (g *gateway) PendingSubmissions(ctx context.Context, limit int) ([]model.Submission, error) {
	return g.queue.PendingSubmissions(ctx, limit)
}

// Stats は投稿の集計情報を返す。
func (g *gateway) Stats(ctx context.Context) (*model.SubmissionStats, error) {
	return g.queue.Stats(ctx)
}

// checkSourceReachable は出典URLにHEADリクエストを送り、到達性を確認する。
func (g *gateway) checkSourceReachable(ctx context.Context, source string) error {
	reqCtx, cancel := context.WithTimeout(ctx, g.config.SourceCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, source, nil)
	if err != nil {
		return fmt.Errorf("リクエストの作成に失敗: %w", err)
	}

	resp, err := g.safeClient.Do(req)
	if err != nil {
		return fmt.Errorf("出典URLへの接続に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("出典URLがエラーを返しました: HTTP %d", resp.StatusCode)
	}
	return nil
}
