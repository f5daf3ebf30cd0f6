package review

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/encyclo/internal/model"
)

// フィンガープリントIDの長さ（16進文字数）。
const fingerprintLength = 16

// QueueConfig はレビューキューの不正利用フラグ判定のしきい値を保持する。
type QueueConfig struct {
	// Window は同一IPの履歴を参照する期間。
	Window time.Duration
	// FrequencyLimit はこの件数以上の先行投稿でhigh_submission_frequencyを付与する。
	FrequencyLimit int
	// DuplicateLimit は類似投稿がこの件数以上でduplicate_contentを付与する。
	DuplicateLimit int
	// SimilarityLimit はこの値を超えるJaccard類似度を類似投稿とみなす。
	SimilarityLimit float64
	// TopicLimit は同一トピックへの先行投稿がこの件数以上でtopic_concentrationを付与する。
	TopicLimit int
	// MinContentLength はトリム後この文字数未満でshort_contentを付与する。
	MinContentLength int
	// MaxURLCount はURLがこの個数を超えるとexcessive_urlsを付与する。
	MaxURLCount int
}

// DefaultQueueConfig は既定のしきい値を返す。
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Window:           time.Hour,
		FrequencyLimit:   5,
		DuplicateLimit:   2,
		SimilarityLimit:  0.8,
		TopicLimit:       3,
		MinContentLength: 20,
		MaxURLCount:      3,
	}
}

// Queue は投稿の追記専用履歴と不正利用フラグ判定を提供する。
// フラグは投稿作成時に、追記前の履歴に対して一度だけ計算される。
type Queue struct {
	// mu はフラグ計算と追記を直列化する。
	// フラグ計算は追記前の履歴を読むため、別の追記と競合してはならない。
	mu     sync.Mutex
	store  Store
	config QueueConfig
}

// NewQueue はQueueの新しいインスタンスを生成する。
func NewQueue(store Store, config QueueConfig) *Queue {
	return &Queue{
		store:  store,
		config: config,
	}
}

// Add は投稿を作成して履歴に追記する。
// autoApproveがtrueの場合は初期ステータスをauto_approvedに、それ以外はpendingにする。
// 不正利用フラグは追記前の同一IP・直近ウィンドウ内の履歴に対して計算される。
func (q *Queue) Add(ctx context.Context, ipAddress, userID string, action model.SubmissionAction, topic, content string, sources []string, autoApprove bool) (*model.Submission, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := timeNow()

	status := model.StatusPending
	if autoApprove {
		status = model.StatusAutoApproved
	}

	recent, err := q.store.RecentByIP(ctx, ipAddress, now.Add(-q.config.Window))
	if err != nil {
		return nil, fmt.Errorf("投稿履歴の取得に失敗: %w", err)
	}

	submission := &model.Submission{
		ID:        fingerprint(ipAddress, now, content),
		CreatedAt: now,
		IPAddress: ipAddress,
		UserID:    userID,
		Action:    action,
		Topic:     topic,
		Content:   content,
		Sources:   sources,
		Status:    status,
		Flags:     q.computeFlags(recent, topic, content),
	}

	if err := q.store.Append(ctx, submission); err != nil {
		return nil, fmt.Errorf("投稿の追記に失敗: %w", err)
	}

	slog.Info("投稿を受理",
		slog.String("submission_id", submission.ID),
		slog.String("action", string(action)),
		slog.String("topic", topic),
		slog.String("status", string(status)),
		slog.Int("flag_count", len(submission.Flags)),
	)

	return submission, nil
}

// computeFlags は追記前の履歴に基づいて不正利用フラグを計算する。
// 各フラグは独立に判定される。
func (q *Queue) computeFlags(recent []model.Submission, topic, content string) []string {
	var flags []string

	// 投稿頻度
	if len(recent) >= q.config.FrequencyLimit {
		flags = append(flags, model.FlagHighSubmissionFrequency)
	}

	// 重複コンテンツ
	duplicates := 0
	for _, prev := range recent {
		if contentSimilarity(content, prev.Content) > q.config.SimilarityLimit {
			duplicates++
		}
	}
	if duplicates >= q.config.DuplicateLimit {
		flags = append(flags, model.FlagDuplicateContent)
	}

	// トピック集中（大文字小文字を区別しない）
	sameTopic := 0
	for _, prev := range recent {
		if strings.EqualFold(prev.Topic, topic) {
			sameTopic++
		}
	}
	if sameTopic >= q.config.TopicLimit {
		flags = append(flags, model.FlagTopicConcentration)
	}

	// 短すぎる内容
	if len([]rune(strings.TrimSpace(content))) < q.config.MinContentLength {
		flags = append(flags, model.FlagShortContent)
	}

	// URLの過剰な埋め込み。スキームの大文字小文字は区別しない
	lowered := strings.ToLower(content)
	urlCount := strings.Count(lowered, "http://") + strings.Count(lowered, "https://")
	if urlCount > q.config.MaxURLCount {
		flags = append(flags, model.FlagExcessiveURLs)
	}

	return flags
}

// ShouldRequireReview は投稿が人手のレビューを必要とするかを判定する。
// auto_approvedの投稿は常にfalse。フラグが1つ以上あればtrue。
// フラグなしのpending投稿はfalseを返すが、キュー自身はステータスを昇格させない。
// 昇格するかどうかは呼び出し側のポリシーに委ねる。
func (q *Queue) ShouldRequireReview(submission *model.Submission) bool {
	if submission.Status == model.StatusAutoApproved {
		return false
	}
	return len(submission.Flags) > 0
}

// Approve は投稿を承認状態に遷移させる。
// 投稿が存在しない、またはpending以外の場合はfalseを返す。
func (q *Queue) Approve(ctx context.Context, id string) (bool, error) {
	ok, err := q.store.MarkReviewed(ctx, id, model.StatusApproved, "", timeNow())
	if err != nil {
		return false, fmt.Errorf("投稿の承認に失敗: %w", err)
	}
	if !ok {
		slog.Warn("承認できない投稿", slog.String("submission_id", id))
	}
	return ok, nil
}

// Reject は投稿を却下状態に遷移させ、理由を記録する。
// 投稿が存在しない、またはpending以外の場合はfalseを返す。
func (q *Queue) Reject(ctx context.Context, id, reason string) (bool, error) {
	ok, err := q.store.MarkReviewed(ctx, id, model.StatusRejected, reason, timeNow())
	if err != nil {
		return false, fmt.Errorf("投稿の却下に失敗: %w", err)
	}
	if !ok {
		slog.Warn("却下できない投稿", slog.String("submission_id", id))
	}
	return ok, nil
}

// Find は投稿をIDで検索する。見つからない場合は(nil, nil)を返す。
func (q *Queue) Find(ctx context.Context, id string) (*model.Submission, error) {
	return q.store.FindByID(ctx, id)
}

// PendingSubmissions はレビュー待ちの投稿を新しい順で最大limit件返す。
func (q *Queue) PendingSubmissions(ctx context.Context, limit int) ([]model.Submission, error) {
	return q.store.ListPending(ctx, limit)
}

// Stats は投稿の集計情報を返す。
func (q *Queue) Stats(ctx context.Context) (*model.SubmissionStats, error) {
	return q.store.Stats(ctx)
}

// fingerprint は(IP, 作成時刻, 内容)から決定的な投稿IDを導出する。
// 時刻を含むため、同一内容のリトライでも毎回異なるIDになる。
// 内容ハッシュだけでの重複排除は意図的に行わない。
func fingerprint(ipAddress string, createdAt time.Time, content string) string {
	h := sha256.Sum256([]byte(ipAddress + createdAt.Format(time.RFC3339Nano) + content))
	return hex.EncodeToString(h[:])[:fingerprintLength]
}
