package security

import "strings"

// フィードバックバリデーションの制約値。
const (
	// MinFeedbackLength はトリム後のフィードバック本文の最小文字数。
	MinFeedbackLength = 10
	// MaxFeedbackLength はフィードバック本文の最大文字数（サニタイズ前の生入力に適用）。
	MaxFeedbackLength = 2000
	// MaxSourceLength は出典URL1件の最大文字数。
	MaxSourceLength = 500

	// BodyThreshold は本文に適用するインジェクション判定しきい値。
	// 自由記述は指示を隠す余地が大きいため厳しめに設定する。
	BodyThreshold = 0.3
	// SourceThreshold は出典URLに適用するインジェクション判定しきい値。
	// URLは短く複文の命令を含みにくいため緩めに設定する。
	SourceThreshold = 0.7
)

// バリデーション失敗時のユーザー向けメッセージ。
// 攻撃者にどの検出パターンに触れたかを教えないため、意図的に一般的な文言にする。
const (
	MsgFeedbackTooShort   = "フィードバックは10文字以上で入力してください。"
	MsgFeedbackTooLong    = "フィードバックは2000文字以内で入力してください。"
	MsgFeedbackSuspicious = "入力に指示やコマンドが含まれているようです。事実に基づく情報のみを入力してください。"
	MsgSourceTooLong      = "出典URLは500文字以内で入力してください。"
	MsgSourceSuspicious   = "出典に不審な内容が含まれています。有効なURLのみを入力してください。"
)

// FeedbackValidator はユーザーフィードバックをLLMに渡す前に検査する。
// 検査は生入力に対して行い、サニタイズは受理後の入力にのみ適用される。
type FeedbackValidator struct {
	detector *InjectionDetector
}

// NewFeedbackValidator はFeedbackValidatorの新しいインスタンスを生成する。
func NewFeedbackValidator(detector *InjectionDetector) *FeedbackValidator {
	return &FeedbackValidator{detector: detector}
}

// Validate はフィードバック本文と出典URL群を検査する。
// 以下の順に検査し、最初の失敗で打ち切る:
//  1. トリム後10文字未満 → 拒否
//  2. 2000文字超 → 拒否
//  3. 本文のインジェクション検査（しきい値0.3）
//  4. 出典URLの長さ検査（500文字以内）
//  5. 出典URLのインジェクション検査（しきい値0.7）
//
// 全検査を通過した場合のみ(true, "")を返す。
func (v *FeedbackValidator) Validate(feedbackText string, sources []string) (bool, string) {
	trimmed := []rune(strings.TrimSpace(feedbackText))
	if len(trimmed) < MinFeedbackLength {
		return false, MsgFeedbackTooShort
	}

	if len([]rune(feedbackText)) > MaxFeedbackLength {
		return false, MsgFeedbackTooLong
	}

	if assessment := v.detector.Assess(feedbackText, BodyThreshold); assessment.IsSuspicious {
		return false, MsgFeedbackSuspicious
	}

	for _, source := range sources {
		if len([]rune(source)) > MaxSourceLength {
			return false, MsgSourceTooLong
		}
		if assessment := v.detector.Assess(source, SourceThreshold); assessment.IsSuspicious {
			return false, MsgSourceSuspicious
		}
	}

	return true, ""
}
