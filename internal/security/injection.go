// Package security はアプリケーションのセキュリティ機能を提供する。
//
// InjectionDetector はユーザー入力に対するプロンプトインジェクションの
// ヒューリスティック検査を行う。正規表現による検出器テーブルと
// 補助ヒューリスティクス（特殊文字密度・命令キーワード密度・大文字比率）の
// 重み付き合算でスコアを算出する。
package security

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/hitoshi/encyclo/internal/model"
)

// 検出器カテゴリごとの重み。
const (
	patternWeight     = 0.35 // 正規表現検出器1カテゴリのマッチ
	specialCharWeight = 0.10 // 特殊文字密度が0.15超
	keywordWeight     = 0.15 // 命令キーワードが3種以上
	uppercaseWeight   = 0.05 // 大文字比率が0.5超（20文字超の入力のみ）
)

// specialCharDensityLimit は特殊文字密度の許容上限。
const specialCharDensityLimit = 0.15

// uppercaseRatioLimit は大文字比率の許容上限。
const uppercaseRatioLimit = 0.5

// keywordCountLimit はこの数以上の命令キーワードでスコアを加算する。
const keywordCountLimit = 3

// previewLength は警告ログに含める入力プレビューの最大文字数。
// 全文をログに残さないための上限。
const previewLength = 100

// injectionRule はプロンプトインジェクション検出器1件を表す。
// 制御フローを変えずに検出器を追加できるよう、宣言的なテーブルとして保持する。
type injectionRule struct {
	pattern *regexp.Regexp
	reason  string
}

// injectionRules はプロンプトインジェクションの兆候を検出する固定の検出器テーブル。
// マッチしたカテゴリ1つにつきpatternWeightがスコアに加算される。
var injectionRules = []injectionRule{
	// 命令の上書き
	{regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules?|commands?)`), "instruction override"},
	{regexp.MustCompile(`(?i)ignore\s+(previous|all|above|prior)\s+(instructions?|prompts?|rules?|commands?)`), "instruction override"},
	{regexp.MustCompile(`(?i)(disregard|forget|override)\s+(previous|all|above|prior)\s+(instructions?|prompts?|rules?|commands?)`), "instruction override"},
	{regexp.MustCompile(`(?i)(do\s+not|don't|never)\s+(follow|obey|listen\s+to)\s+(instructions?|rules?|guidelines?)`), "instruction override"},

	// 役割の再割り当て
	{regexp.MustCompile(`(?i)^(you\s+are|you're|act\s+as|pretend\s+to\s+be|roleplay|imagine\s+you\s+are)`), "role reassignment"},
	{regexp.MustCompile(`(?i)(instead|rather|now),?\s+(you\s+are|you're|act\s+as|become)`), "role reassignment"},
	{regexp.MustCompile(`(?i)(from\s+now\s+on|starting\s+now|beginning\s+now)`), "role reassignment"},
	{regexp.MustCompile(`(?i)(new\s+instructions?|updated\s+instructions?|system\s+prompt)`), "role reassignment"},

	// システムコマンド風の構文
	{regexp.MustCompile(`(?i)(system|admin|root|sudo)\s*(:|mode|prompt|command)`), "system command framing"},
	{regexp.MustCompile(`(?i)(execute|run|eval|evaluate)\s+(command|code|script)`), "system command framing"},

	// 出力の乗っ取り
	{regexp.MustCompile(`(?i)(output|print|return|display|show)\s+(only|just|exactly)`), "output hijacking"},
	{regexp.MustCompile(`(?i)(respond\s+with|reply\s+with|say\s+only)\s+['"]`), "output hijacking"},

	// コンテキストからの脱出
	{regexp.MustCompile(`(?i)(end\s+of|exit|escape|break\s+out\s+of)\s+(context|role|character|mode)`), "context escape"},
	{regexp.MustCompile("(?i)```\\s*(python|javascript|bash)"), "context escape"},

	// 指示内容の抽出
	{regexp.MustCompile(`(?i)(show|reveal|display|print)\s+(your|the)\s+(prompt|instructions?|system|rules?)`), "instruction exfiltration"},
}

// instructionKeywords は命令キーワード密度の判定に使うキーワード集合。
var instructionKeywords = []string{
	"ignore", "disregard", "forget", "override", "system", "admin",
	"execute", "run", "eval", "prompt", "instruction", "command",
}

// specialChars はコンテキスト脱出に使われやすい特殊文字の集合。
const specialChars = "{}()<>[]\"'`"

// InjectionDetector はプロンプトインジェクションのヒューリスティック検査器。
// 状態を持たず、同一入力・同一しきい値に対して常に同一の結果を返す。
type InjectionDetector struct{}

// NewInjectionDetector はInjectionDetectorの新しいインスタンスを生成する。
func NewInjectionDetector() *InjectionDetector {
	return &InjectionDetector{}
}

// Assess はテキストのインジェクション疑惑スコアを算出する。
// 各検出器カテゴリのマッチと補助ヒューリスティクスの重みを合算し、
// [0.0, 1.0]に飽和クランプする（正規化はしない）。
// しきい値は呼び出し側が用途ごとに指定する（本文は0.3、URLは0.7など）。
// 空文字・空白のみの入力にはスコア0.0を返す。
// 疑わしい入力は先頭100文字のプレビュー付きで警告ログに記録する。
func (d *InjectionDetector) Assess(text string, threshold float64) model.InjectionAssessment {
	if strings.TrimSpace(text) == "" {
		return model.InjectionAssessment{}
	}

	var score float64
	var reasons []string

	// 同一カテゴリ内の複数検出器がマッチしても重みは1回だけ加算する。
	matched := make(map[string]bool)
	for _, rule := range injectionRules {
		if matched[rule.reason] {
			continue
		}
		if rule.pattern.MatchString(text) {
			matched[rule.reason] = true
			score += patternWeight
			reasons = append(reasons, rule.reason)
		}
	}

	// 特殊文字密度: コンテキスト脱出の試みの兆候
	if specialCharRatio(text) > specialCharDensityLimit {
		score += specialCharWeight
		reasons = append(reasons, "high ratio of special characters")
	}

	// 命令キーワード密度
	if n := countInstructionKeywords(text); n >= keywordCountLimit {
		score += keywordWeight
		reasons = append(reasons, fmt.Sprintf("multiple instruction keywords (%d)", n))
	}

	// 大文字比率: 命令の強調を疑う
	runes := []rune(text)
	if len(runes) > 20 && uppercaseRatio(runes) > uppercaseRatioLimit {
		score += uppercaseWeight
		reasons = append(reasons, "unusual capitalization pattern")
	}

	if score > 1.0 {
		score = 1.0
	}

	suspicious := score >= threshold
	if suspicious {
		slog.Warn("プロンプトインジェクションの可能性を検出",
			slog.Float64("score", score),
			slog.Int("reasons", len(reasons)),
			slog.String("preview", preview(text)),
		)
	}

	return model.InjectionAssessment{
		IsSuspicious:   suspicious,
		Score:          score,
		MatchedReasons: reasons,
	}
}

// specialCharRatio は特殊文字が全体に占める割合を返す。
func specialCharRatio(text string) float64 {
	runes := []rune(text)
	count := 0
	for _, r := range runes {
		if strings.ContainsRune(specialChars, r) {
			count++
		}
	}
	return float64(count) / float64(len(runes))
}

// countInstructionKeywords はテキストに含まれる命令キーワードの種類数を返す。
// 大文字小文字を区別しない部分一致で判定する。
func countInstructionKeywords(text string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, kw := range instructionKeywords {
		if strings.Contains(lower, kw) {
			count++
		}
	}
	return count
}

// uppercaseRatio は大文字が全体に占める割合を返す。
func uppercaseRatio(runes []rune) float64 {
	upper := 0
	for _, r := range runes {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return float64(upper) / float64(len(runes))
}

// preview はログ用にテキストの先頭100文字を返す。
func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength])
}
