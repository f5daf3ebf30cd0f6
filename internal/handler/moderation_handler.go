package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/encyclo/internal/middleware"
	"github.com/hitoshi/encyclo/internal/model"
	"github.com/hitoshi/encyclo/internal/moderation"
)

// リプライコード。LLMの応答プロトコルに合わせた1文字のコード。
const (
	replyApplied   = "1" // 記事に反映された
	replyUnchanged = "0" // 記事は変更されなかった
	replyQueued    = "queued"
)

// ModerationGatewayInterface は投稿ハンドラーが必要とするゲートウェイインターフェース。
type ModerationGatewayInterface interface {
	// Process は投稿を検査し、受理またはAPIErrorで拒否する。
	Process(ctx context.Context, req moderation.SubmissionRequest) (*moderation.Result, error)
}

// ModerationHandler はユーザー投稿のHTTPハンドラー。
type ModerationHandler struct {
	gateway ModerationGatewayInterface
}

// NewModerationHandler はModerationHandlerを生成する。
func NewModerationHandler(gateway ModerationGatewayInterface) *ModerationHandler {
	return &ModerationHandler{gateway: gateway}
}

// --- リクエスト・レスポンス型 ---

// submissionRequestBody は投稿リクエストのボディ。
type submissionRequestBody struct {
	Topic   string   `json:"topic"`
	Details string   `json:"details"`
	Sources []string `json:"sources,omitempty"`
}

// submissionReplyResponse は投稿処理のレスポンス。
// Replyは "1"（反映）、"0"（変更なし）、"queued"（レビュー保留）のいずれか。
type submissionReplyResponse struct {
	Reply        string `json:"reply"`
	SubmissionID string `json:"submission_id,omitempty"`
}

// Report は記事の誤りの報告を受け付ける。
// POST /report
func (h *ModerationHandler) Report(w http.ResponseWriter, r *http.Request) {
	h.processSubmission(w, r, model.ActionReport)
}

// AddInfo は記事への情報追加を受け付ける。
// POST /add_info
func (h *ModerationHandler) AddInfo(w http.ResponseWriter, r *http.Request) {
	h.processSubmission(w, r, model.ActionAddInfo)
}

// processSubmission は投稿をゲートウェイに渡し、結果をレスポンスに変換する。
// レビュー保留の場合は202 Acceptedで投稿IDを返す。
func (h *ModerationHandler) processSubmission(w http.ResponseWriter, r *http.Request, action model.SubmissionAction) {
	var body submissionRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		userID = "anonymous"
	}

	result, err := h.gateway.Process(r.Context(), moderation.SubmissionRequest{
		IPAddress: middleware.ClientIP(r),
		UserID:    userID,
		Action:    action,
		Topic:     body.Topic,
		Details:   body.Details,
		Sources:   body.Sources,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if result.Held {
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(submissionReplyResponse{
			Reply:        replyQueued,
			SubmissionID: result.Submission.ID,
		})
		return
	}

	reply := replyUnchanged
	if result.Applied {
		reply = replyApplied
	}
	json.NewEncoder(w).Encode(submissionReplyResponse{
		Reply:        reply,
		SubmissionID: result.Submission.ID,
	})
}
