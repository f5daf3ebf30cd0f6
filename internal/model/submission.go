package model

import "time"

// SubmissionAction は投稿の種別を表す。
type SubmissionAction string

const (
	// ActionReport は記事の誤りの報告を示す。
	ActionReport SubmissionAction = "report"
	// ActionAddInfo は記事への情報追加の提案を示す。
	ActionAddInfo SubmissionAction = "add_info"
)

// SubmissionStatus は投稿のレビュー状態を表す。
// 状態遷移はpending → approved/rejectedのみ。
// auto_approvedは作成時にのみ設定され、以降遷移しない終端状態。
type SubmissionStatus string

const (
	// StatusPending はレビュー待ちの状態を示す。
	StatusPending SubmissionStatus = "pending"
	// StatusAutoApproved は信頼済みコンテキストでレビューをスキップした状態を示す。
	StatusAutoApproved SubmissionStatus = "auto_approved"
	// StatusApproved はレビュアーが承認した状態を示す。
	StatusApproved SubmissionStatus = "approved"
	// StatusRejected はレビュアーが却下した状態を示す。
	StatusRejected SubmissionStatus = "rejected"
)

// 投稿に付与される不正利用フラグ。
// フラグは投稿作成時に一度だけ計算され、以降変更されない。
const (
	// FlagHighSubmissionFrequency は同一IPから直近1時間に5件以上の投稿があることを示す。
	FlagHighSubmissionFrequency = "high_submission_frequency"
	// FlagDuplicateContent は同一IPから類似度0.8超の投稿が2件以上あることを示す。
	FlagDuplicateContent = "duplicate_content"
	// FlagTopicConcentration は同一IPから同一トピックへの投稿が3件以上あることを示す。
	FlagTopicConcentration = "topic_concentration"
	// FlagShortContent はトリム後の内容が20文字未満であることを示す。
	FlagShortContent = "short_content"
	// FlagExcessiveURLs は内容にURLが3個を超えて含まれることを示す。
	FlagExcessiveURLs = "excessive_urls"
)

// Submission はユーザーによる記事への修正・追加の提案1件を表す。
// IDは(IP, 作成時刻, 内容)から導出される決定的なフィンガープリント。
type Submission struct {
	ID              string           `json:"id"`
	CreatedAt       time.Time        `json:"created_at"`
	IPAddress       string           `json:"ip_address"`
	UserID          string           `json:"user_id"`
	Action          SubmissionAction `json:"action"`
	Topic           string           `json:"topic"`
	Content         string           `json:"content"` // サニタイズ済みの投稿本文
	Sources         []string         `json:"sources"`
	Status          SubmissionStatus `json:"status"`
	Flags           []string         `json:"flags"`
	ReviewedAt      *time.Time       `json:"reviewed_at,omitempty"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
}

// SubmissionStats は投稿の集計情報を表す。
// Flaggedはフラグが1つ以上ある投稿数で、ステータスとは独立に数える。
type SubmissionStats struct {
	Total        int `json:"total"`
	Pending      int `json:"pending"`
	Approved     int `json:"approved"`
	Rejected     int `json:"rejected"`
	AutoApproved int `json:"auto_approved"`
	Flagged      int `json:"flagged"`
}

// InjectionAssessment はプロンプトインジェクション検査1回の結果を表す。
// 永続化されない一時的な値で、同一入力・同一しきい値に対して常に同一の結果となる。
type InjectionAssessment struct {
	IsSuspicious   bool     // Scoreがしきい値以上の場合true
	Score          float64  // 0.0〜1.0の疑惑スコア
	MatchedReasons []string // マッチした検出器の説明（検出順）
}
