// Package review は投稿のレビューキューと不正利用フラグ判定を提供する。
package review

import "strings"

// contentSimilarity は2つのテキストの単語集合Jaccard類似度を返す。
// 小文字化して空白で分割した単語集合の |積集合| / |和集合| を算出する。
// どちらかの集合が空の場合は0.0を返す。
func contentSimilarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for word := range setA {
		if setB[word] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}

// wordSet はテキストを小文字化・空白分割した単語集合に変換する。
func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		set[word] = true
	}
	return set
}
