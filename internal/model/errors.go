package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, moderation, article, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidTopic        = "INVALID_TOPIC"
	ErrCodeTopicNotFound       = "TOPIC_NOT_FOUND"
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeInvalidSource       = "INVALID_SOURCE"
	ErrCodeSubmissionNotFound  = "SUBMISSION_NOT_FOUND"
	ErrCodeInvalidReviewAction = "INVALID_REVIEW_ACTION"
	ErrCodeLLMUnavailable      = "LLM_UNAVAILABLE"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
)

// NewInvalidTopicError は無効なトピック名エラーを生成する。
// 不正パターンの詳細は意図的に返さない。
func NewInvalidTopicError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTopic,
		Message:  "無効なトピック名です。",
		Category: "validation",
		Action:   "英数字・ハイフン・アンダースコア・空白のみ、50文字以内で入力してください。",
	}
}

// NewTopicNotFoundError はトピック未検出エラーを生成する。
func NewTopicNotFoundError(topic string) *APIError {
	return &APIError{
		Code:     ErrCodeTopicNotFound,
		Message:  fmt.Sprintf("指定されたトピックが見つかりません: %s", topic),
		Category: "article",
		Action:   "トピック名を確認するか、先に記事を生成してください。",
	}
}

// NewValidationFailedError は投稿バリデーション失敗エラーを生成する。
// messageには検出ヒューリスティクスを明かさない一般的な文言を渡すこと。
func NewValidationFailedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Category: "moderation",
		Action:   "入力内容を見直して再度お試しください。",
	}
}

// NewInvalidSourceError は出典URLが不正な場合のエラーを生成する。
func NewInvalidSourceError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSource,
		Message:  "出典URLが無効です。",
		Category: "moderation",
		Action:   "http:// または https:// で始まる公開URLを指定してください。",
	}
}

// NewSubmissionNotFoundError は投稿未検出エラーを生成する。
func NewSubmissionNotFoundError(submissionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSubmissionNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %s", submissionID),
		Category: "moderation",
		Action:   "投稿IDを確認してください。レビュー済みの投稿は再レビューできません。",
	}
}

// NewInvalidReviewActionError は無効なレビュー操作エラーを生成する。
func NewInvalidReviewActionError(action string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidReviewAction,
		Message:  fmt.Sprintf("無効なレビュー操作です: %s", action),
		Category: "validation",
		Action:   "actionには approve または reject を指定してください。",
	}
}

// NewLLMUnavailableError はLLMプロバイダが利用できない場合のエラーを生成する。
func NewLLMUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeLLMUnavailable,
		Message:  "記事生成バックエンドが現在利用できません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewUnauthorizedError は認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "有効な管理者トークンを指定してください。",
	}
}
