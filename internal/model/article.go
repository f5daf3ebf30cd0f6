// Package model はドメインモデルを定義する。
package model

import "time"

// Article は生成済みの百科事典記事を表す。
// TopicKeyは小文字に正規化されたスラッグで、記事の一意キーとなる。
type Article struct {
	TopicKey    string    `json:"topic_key"`
	Content     string    `json:"content"`  // サニタイズ済みHTML
	Markdown    string    `json:"markdown"` // LLMが生成した元のMarkdown
	GeneratedAt time.Time `json:"generated_at"`
	Suggestions []string  `json:"suggestions"` // 関連トピックの候補
}

// IsOutdated は記事がmaxAgeより古いかを判定する。
// GeneratedAtがゼロ値の場合は常にtrueを返す。
func (a *Article) IsOutdated(now time.Time, maxAge time.Duration) bool {
	if a.GeneratedAt.IsZero() {
		return true
	}
	return now.Sub(a.GeneratedAt) > maxAge
}
