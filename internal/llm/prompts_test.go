package llm

import (
	"reflect"
	"strings"
	"testing"

	"github.com/hitoshi/encyclo/internal/model"
)

// TestParseReply はリプライコードと本文の分離を検証する。
func TestParseReply(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode string
		wantBody string
	}{
		{
			name:     "コード付きの応答",
			input:    "1\n# Article\n\nBody text.",
			wantCode: "1",
			wantBody: "# Article\n\nBody text.",
		},
		{
			name:     "変更なしの応答",
			input:    "0\nUnchanged article.",
			wantCode: "0",
			wantBody: "Unchanged article.",
		},
		{
			name:     "改行なしの応答はコード不明として扱う",
			input:    "just some text without a code line",
			wantCode: ReplyUnchanged,
			wantBody: "just some text without a code line",
		},
		{
			name:     "コード行の前後空白を除去",
			input:    " 1 \nBody",
			wantCode: "1",
			wantBody: "Body",
		},
		{
			name:     "空の応答",
			input:    "",
			wantCode: ReplyUnchanged,
			wantBody: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := ParseReply(tt.input)
			if code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

// TestParseSuggestions は関連トピック一覧の抽出を検証する。
func TestParseSuggestions(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "素のJSON配列",
			input: `["quantum entanglement", "qubit", "superposition"]`,
			want:  []string{"quantum entanglement", "qubit", "superposition"},
		},
		{
			name:  "jsonコードフェンス付き",
			input: "```json\n[\"topic a\", \"topic b\"]\n```",
			want:  []string{"topic a", "topic b"},
		},
		{
			name:  "言語指定なしのコードフェンス",
			input: "```\n[\"topic a\"]\n```",
			want:  []string{"topic a"},
		},
		{
			name:  "空要素は取り除く",
			input: `["valid", "", "  "]`,
			want:  []string{"valid"},
		},
		{
			name:  "不正なJSONは空を返す",
			input: "I could not extract any topics, sorry!",
			want:  nil,
		},
		{
			name:  "配列でないJSONは空を返す",
			input: `{"topics": ["a"]}`,
			want:  nil,
		},
		{
			name:  "空配列",
			input: "[]",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSuggestions(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseSuggestions(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestBuildFeedbackPrompt_WrapsUserContent はユーザー由来の内容が区切り文字で囲まれることを検証する。
func TestBuildFeedbackPrompt_WrapsUserContent(t *testing.T) {
	details := "The founding year should be 1950."
	sources := []string{"https://example.com/history"}

	for _, action := range []model.SubmissionAction{model.ActionReport, model.ActionAddInfo} {
		t.Run(string(action), func(t *testing.T) {
			system, prompt := BuildFeedbackPrompt("tokyo", "# Tokyo\n\nArticle body.", action, details, sources)

			if !strings.Contains(prompt, userContentOpen) || !strings.Contains(prompt, userContentClose) {
				t.Error("prompt should wrap user content in delimiters")
			}
			// 区切り文字の内側に投稿内容がある
			openIdx := strings.Index(prompt, userContentOpen)
			closeIdx := strings.Index(prompt, userContentClose)
			inner := prompt[openIdx+len(userContentOpen) : closeIdx]
			if !strings.Contains(inner, details) {
				t.Errorf("user details should be inside delimiters: %q", inner)
			}
			// システムプロンプトが区切り内をデータとして扱うよう指示している
			if !strings.Contains(system, userContentOpen) {
				t.Error("system prompt should explain the delimiter convention")
			}
		})
	}
}

// TestBuildGeneratePrompt は生成プロンプトの構成要素を検証する。
func TestBuildGeneratePrompt(t *testing.T) {
	system, prompt := BuildGeneratePrompt("quantum computing")

	if system != systemWriter {
		t.Errorf("system = %q", system)
	}
	for _, want := range []string{"quantum computing", "References", "reply code", "Markdown"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt should contain %q", want)
		}
	}
}

// TestBuildUpdatePrompt は更新プロンプトに現行記事が含まれることを検証する。
func TestBuildUpdatePrompt(t *testing.T) {
	current := "# Topic\n\nExisting content."
	_, prompt := BuildUpdatePrompt("topic", current)

	if !strings.Contains(prompt, current) {
		t.Error("prompt should contain the current article")
	}
	if !strings.Contains(prompt, "reply code") {
		t.Error("prompt should request a reply code")
	}
}
