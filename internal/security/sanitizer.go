package security

import (
	"log/slog"
	"regexp"
	"strings"
)

// MaxPromptInputLength はLLMプロンプトに埋め込むユーザー入力の最大文字数。
const MaxPromptInputLength = 2000

// controlCharPattern はASCII制御文字（C0の一部とDEL、C1）にマッチする。
// タブ・改行・復帰（\x09, \x0a, \x0d）は後段の空白正規化で処理するため含めない。
var controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f-\x9f]`)

// whitespacePattern は連続する空白文字（改行・タブ含む）にマッチする。
var whitespacePattern = regexp.MustCompile(`\s+`)

// SanitizeForPrompt はユーザー入力をLLMプロンプトへ安全に埋め込める形に整形する。
// 処理内容:
//  1. MaxPromptInputLength文字に切り詰める（超過分は破棄し、infoログを残す）
//  2. 制御文字を除去する（置換ではなく削除）
//  3. 連続する空白を半角スペース1つに正規化する
//  4. 先頭・末尾の空白を取り除く
//
// 純粋関数であり冪等。空文字には空文字を返し、エラーは発生しない。
func SanitizeForPrompt(input string) string {
	if input == "" {
		return ""
	}

	runes := []rune(input)
	if len(runes) > MaxPromptInputLength {
		slog.Info("ユーザー入力を切り詰め",
			slog.Int("original_length", len(runes)),
			slog.Int("max_length", MaxPromptInputLength),
		)
		input = string(runes[:MaxPromptInputLength])
	}

	sanitized := controlCharPattern.ReplaceAllString(input, "")
	sanitized = whitespacePattern.ReplaceAllString(sanitized, " ")

	return strings.TrimSpace(sanitized)
}
