package security

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// HTMLSanitizerService はLLMが生成した記事HTMLのサニタイズ機能のインターフェースを定義する。
// LLM出力は信頼できない入力として扱い、レンダリング済みHTMLを保存前に必ず通す。
type HTMLSanitizerService interface {
	// Sanitize は記事HTMLをサニタイズして安全なHTMLを返す。
	// 見出し・段落・リスト・リンク等の記事表現に必要なタグのみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// aタグのhrefはhttp/httpsとページ内アンカー（#ref-n）のみ許可される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// htmlSanitizer はHTMLSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type htmlSanitizer struct {
	policy *bluemonday.Policy
}

// anchorIDPattern は見出しと出典項目に付与するアンカーIDの形式。
var anchorIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// NewHTMLSanitizer はHTMLSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのカスタムポリシーを構築する。
// ポリシーの内容:
//   - 許可タグ: h1〜h6, p, br, ul, ol, li, blockquote, pre, code, strong, em, a
//   - h1〜h6とliにはアンカー用のid属性を許可（英小文字・数字・ハイフンのみ）
//   - aタグ: href属性を許可し、target="_blank"とrel="noopener noreferrer"を外部リンクに付与
//   - script, iframe, style等は許可リストに含めないことで自動的に除去される
func NewHTMLSanitizer() *htmlSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	// 目次リンクと出典参照のため、見出しとli要素にid属性を許可する。
	p.AllowAttrs("id").Matching(anchorIDPattern).OnElements(
		"h1", "h2", "h3", "h4", "h5", "h6", "li",
	)

	// aタグ: 外部リンクとページ内の出典アンカー（#ref-n）を許可する。
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &htmlSanitizer{
		policy: p,
	}
}

// Sanitize は記事HTMLをサニタイズして安全なHTMLを返す。
func (s *htmlSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
