// Package content はMarkdown記事のHTML変換と後処理を提供する。
package content

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hitoshi/encyclo/internal/security"
)

// referenceMarkerPattern は本文中の出典マーカー（[1]など）にマッチする。
var referenceMarkerPattern = regexp.MustCompile(`\[(\d+)\]`)

// referenceItemPattern は出典リスト項目の先頭アンカーにマッチする。
var referenceItemPattern = regexp.MustCompile(`<li>(\s*<a href="#ref-(\d+)">)`)

// Processor はMarkdown記事をHTMLに変換し、出典リンクの付与とサニタイズを行う。
type Processor struct {
	md        goldmark.Markdown
	sanitizer security.HTMLSanitizerService
}

// NewProcessor はProcessorを生成する。
// GFM拡張（テーブル、打ち消し線など）と見出しID自動付与を有効にする。
// 見出しIDは小文字・ハイフン形式で生成され、サニタイザの許可パターンに一致する。
func NewProcessor(sanitizer security.HTMLSanitizerService) *Processor {
	return &Processor{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		sanitizer: sanitizer,
	}
}

// Render はMarkdown記事をHTMLに変換する。
// 変換後、出典マーカーをページ内リンク化し、出典リスト項目にアンカーIDを付与し、
// 最後にサニタイズする。LLM出力は信頼できない入力として扱うため、
// サニタイズは必ず最後に適用する。
func (p *Processor) Render(markdownContent string) (string, error) {
	var buf bytes.Buffer
	if err := p.md.Convert([]byte(markdownContent), &buf); err != nil {
		return "", fmt.Errorf("Markdownの変換に失敗: %w", err)
	}

	rendered := linkifyReferences(buf.String())
	rendered = addReferenceIDs(rendered)

	return p.sanitizer.Sanitize(rendered), nil
}

// linkifyReferences は本文中の出典マーカー[n]を#ref-nへのリンクに置き換える。
func linkifyReferences(htmlStr string) string {
	return referenceMarkerPattern.ReplaceAllString(htmlStr, `<a href="#ref-$1">[$1]</a>`)
}

// addReferenceIDs は出典リスト項目にリンク先となるid属性を付与する。
// 先頭が#ref-nへのアンカーで始まるli要素を対象とする。
func addReferenceIDs(htmlStr string) string {
	return referenceItemPattern.ReplaceAllString(htmlStr, `<li id="ref-$2">$1`)
}

// RemoveDuplicateHeader は記事HTMLの先頭がトピック名を含むh1の場合にそれを取り除く。
// ページ側で見出しを表示するため、記事内のタイトルと重複させない。
// 先頭要素がh1でない、またはトピック名を含まない場合は何もしない。
func RemoveDuplicateHeader(htmlStr, topic string) string {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(htmlStr), context)
	if err != nil {
		return htmlStr
	}

	for i, node := range nodes {
		// 先頭の空白テキストノードは読み飛ばす
		if node.Type == html.TextNode && strings.TrimSpace(node.Data) == "" {
			continue
		}
		if node.Type == html.ElementNode && node.DataAtom == atom.H1 &&
			strings.Contains(strings.ToLower(textContent(node)), strings.ToLower(topic)) {
			var buf bytes.Buffer
			for j, rest := range nodes {
				if j == i {
					continue
				}
				if err := html.Render(&buf, rest); err != nil {
					return htmlStr
				}
			}
			return strings.TrimLeft(buf.String(), "\n")
		}
		break
	}
	return htmlStr
}

// textContent はノード配下のテキストを連結して返す。
func textContent(node *html.Node) string {
	if node.Type == html.TextNode {
		return node.Data
	}
	var sb strings.Builder
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		sb.WriteString(textContent(child))
	}
	return sb.String()
}

// LinkifyTopics はMarkdown本文中の関連トピック候補をリンクに置き換える。
// 長いフレーズを短いフレーズより優先し、各フレーズは最初の安全な出現1箇所のみリンク化する。
// 既存のMarkdownリンクや出典マーカーの内側は書き換えない。
func LinkifyTopics(markdownContent string, suggestions []string) string {
	sorted := make([]string, len(suggestions))
	copy(sorted, suggestions)
	sort.Slice(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})

	for _, phrase := range sorted {
		trimmed := strings.TrimSpace(phrase)
		if len([]rune(trimmed)) < 2 {
			continue
		}

		pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(trimmed) + `\b`)
		if err != nil {
			continue
		}

		for _, loc := range pattern.FindAllStringIndex(markdownContent, -1) {
			if insideMarkdownStructure(markdownContent, loc[0], loc[1]) {
				continue
			}
			matched := markdownContent[loc[0]:loc[1]]
			link := fmt.Sprintf("[%s](/%s)", matched, url.PathEscape(strings.ToLower(matched)))
			markdownContent = markdownContent[:loc[0]] + link + markdownContent[loc[1]:]
			break
		}
	}

	return markdownContent
}

// insideMarkdownStructure は位置[start, end)が既存のMarkdown構造
// （リンクのラベル・URL部、出典マーカー）の内側かを判定する。
func insideMarkdownStructure(content string, start, end int) bool {
	before := content[:start]
	after := content[end:]

	// 角括弧の内側（リンクラベル、出典マーカー）
	openBrackets := strings.Count(before, "[") - strings.Count(before, "]")
	if openBrackets > 0 && strings.Contains(after, "]") {
		return true
	}

	// 丸括弧の内側（リンクURL部）
	openParens := strings.Count(before, "(") - strings.Count(before, ")")
	if openParens > 0 && strings.Contains(after, ")") {
		return true
	}

	return false
}
