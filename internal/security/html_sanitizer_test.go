package security

import (
	"strings"
	"testing"
)

// TestHTMLSanitizer_AllowedTags は記事表現に必要なタグが通過することを確認する。
func TestHTMLSanitizer_AllowedTags(t *testing.T) {
	s := NewHTMLSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "見出しと段落",
			input: "<h2>概要</h2><p>本文です。</p>",
			want:  "<h2>概要</h2><p>本文です。</p>",
		},
		{
			name:  "id付き見出し",
			input: `<h2 id="history">沿革</h2>`,
			want:  `<h2 id="history">沿革</h2>`,
		},
		{
			name:  "リスト",
			input: "<ul><li>項目1</li><li>項目2</li></ul>",
			want:  "<ul><li>項目1</li><li>項目2</li></ul>",
		},
		{
			name:  "出典アンカー",
			input: `<li id="ref-1">出典1</li>`,
			want:  `<li id="ref-1">出典1</li>`,
		},
		{
			name:  "強調とコード",
			input: "<p><strong>重要</strong>な<em>用語</em>と<code>code</code></p>",
			want:  "<p><strong>重要</strong>な<em>用語</em>と<code>code</code></p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Sanitize(tt.input)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestHTMLSanitizer_DangerousContent は危険なタグ・属性が除去されることを確認する。
func TestHTMLSanitizer_DangerousContent(t *testing.T) {
	s := NewHTMLSanitizer()

	tests := []struct {
		name     string
		input    string
		mustLack []string
	}{
		{
			name:     "scriptタグの除去",
			input:    `<p>text</p><script>alert("xss")</script>`,
			mustLack: []string{"<script", "alert"},
		},
		{
			name:     "iframeタグの除去",
			input:    `<iframe src="https://evil.example.com"></iframe><p>ok</p>`,
			mustLack: []string{"<iframe"},
		},
		{
			name:     "イベント属性の除去",
			input:    `<p onclick="steal()">click me</p>`,
			mustLack: []string{"onclick"},
		},
		{
			name:     "javascriptスキームの除去",
			input:    `<a href="javascript:alert(1)">link</a>`,
			mustLack: []string{"javascript:"},
		},
		{
			name:     "不正なid値の除去",
			input:    `<h2 id="x' onload='hack">見出し</h2>`,
			mustLack: []string{"onload"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Sanitize(tt.input)
			for _, bad := range tt.mustLack {
				if strings.Contains(got, bad) {
					t.Errorf("Sanitize(%q) = %q, must not contain %q", tt.input, got, bad)
				}
			}
		})
	}
}

// TestHTMLSanitizer_Links はリンクの属性付与を確認する。
func TestHTMLSanitizer_Links(t *testing.T) {
	s := NewHTMLSanitizer()

	// 外部リンクにはtarget="_blank"とrel属性が付与される
	got := s.Sanitize(`<a href="https://example.com/source">出典</a>`)
	if !strings.Contains(got, `href="https://example.com/source"`) {
		t.Errorf("external href should survive: %q", got)
	}
	if !strings.Contains(got, `target="_blank"`) {
		t.Errorf("target=_blank should be added: %q", got)
	}

	// ページ内アンカーは保持される
	got = s.Sanitize(`<a href="#ref-1">[1]</a>`)
	if !strings.Contains(got, `href="#ref-1"`) {
		t.Errorf("fragment href should survive: %q", got)
	}
}

// TestHTMLSanitizer_Idempotent は2回適用しても結果が変わらないことを確認する。
func TestHTMLSanitizer_Idempotent(t *testing.T) {
	s := NewHTMLSanitizer()

	inputs := []string{
		"",
		"<h2>概要</h2><p>本文</p>",
		`<p onclick="x()">text</p><script>bad()</script>`,
		`<a href="https://example.com">link</a>`,
	}

	for _, input := range inputs {
		once := s.Sanitize(input)
		twice := s.Sanitize(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}
