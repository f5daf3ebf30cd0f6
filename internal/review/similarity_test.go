package review

import "testing"

// TestContentSimilarity はJaccard類似度の算出を検証する。
func TestContentSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "完全一致", a: "the quick brown fox", b: "the quick brown fox", want: 1.0},
		{name: "語順が違っても一致", a: "brown fox the quick", b: "the quick brown fox", want: 1.0},
		{name: "大文字小文字を区別しない", a: "The Quick Brown Fox", b: "the quick brown fox", want: 1.0},
		{name: "共通語なし", a: "alpha beta", b: "gamma delta", want: 0.0},
		{name: "両方空", a: "", b: "", want: 0.0},
		{name: "片方空", a: "hello world", b: "", want: 0.0},
		{name: "空白のみ", a: "   ", b: "hello", want: 0.0},
		{name: "半分共通", a: "a b c d", b: "a b x y", want: 2.0 / 6.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := contentSimilarity(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("contentSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// TestContentSimilarity_Symmetric は引数の順序に依存しないことを検証する。
func TestContentSimilarity_Symmetric(t *testing.T) {
	a := "the founding year is 1950"
	b := "the founding year was 1952 actually"
	if contentSimilarity(a, b) != contentSimilarity(b, a) {
		t.Error("similarity should be symmetric")
	}
}
