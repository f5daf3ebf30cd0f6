package security

import (
	"regexp"
	"strings"
)

// topicSlugPattern はトピックスラッグに許可する文字と長さの制約。
// 英数字・アンダースコア・ハイフン・空白のみ、1〜50文字。
var topicSlugPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-\s]{1,50}$`)

// ValidateTopicSlug はトピックスラッグを検証し、正規化した値を返す。
// 検証に通った場合は小文字化・前後空白除去した正規形と共にtrueを返す。
// 不正な場合は空文字とfalseを返す。
func ValidateTopicSlug(topic string) (string, bool) {
	if !topicSlugPattern.MatchString(topic) {
		return "", false
	}
	normalized := strings.ToLower(strings.TrimSpace(topic))
	if normalized == "" {
		return "", false
	}
	return normalized, true
}
