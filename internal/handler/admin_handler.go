package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/encyclo/internal/model"
)

// defaultPendingLimit はレビュー待ち一覧の1回の取得件数（デフォルト）。
const defaultPendingLimit = 50

// レビュー操作の種別。
const (
	reviewActionApprove = "approve"
	reviewActionReject  = "reject"
)

// AdminGatewayInterface は管理ハンドラーが必要とするゲートウェイインターフェース。
type AdminGatewayInterface interface {
	// ApproveSubmission はレビュー待ちの投稿を承認し、記事への反映を実行する。
	ApproveSubmission(ctx context.Context, submissionID string) (*model.Submission, error)
	// RejectSubmission はレビュー待ちの投稿を却下する。
	RejectSubmission(ctx context.Context, submissionID, reason string) (*model.Submission, error)
	// PendingSubmissions はレビュー待ちの投稿を新しい順で返す。
	PendingSubmissions(ctx context.Context, limit int) ([]model.Submission, error)
	// Stats は投稿の集計情報を返す。
	Stats(ctx context.Context) (*model.SubmissionStats, error)
}

// AdminHandler はレビュー管理のHTTPハンドラー。
type AdminHandler struct {
	gateway AdminGatewayInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(gateway AdminGatewayInterface) *AdminHandler {
	return &AdminHandler{gateway: gateway}
}

// --- リクエスト・レスポンス型 ---

// submissionResponse はレビュー対象の投稿のレスポンス。
type submissionResponse struct {
	ID              string     `json:"id"`
	CreatedAt       time.Time  `json:"created_at"`
	IPAddress       string     `json:"ip_address"`
	Action          string     `json:"action"`
	Topic           string     `json:"topic"`
	Content         string     `json:"content"`
	Sources         []string   `json:"sources,omitempty"`
	Status          string     `json:"status"`
	Flags           []string   `json:"flags,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
}

// pendingListResponse はレビュー待ち一覧のレスポンス。
type pendingListResponse struct {
	Submissions []submissionResponse `json:"submissions"`
}

// reviewActionRequest はレビュー操作リクエストのボディ。
type reviewActionRequest struct {
	SubmissionID string `json:"submission_id"`
	Action       string `json:"action"` // approve または reject
	Reason       string `json:"reason,omitempty"`
}

// statsResponse は投稿の集計レスポンス。
type statsResponse struct {
	Total        int `json:"total"`
	Pending      int `json:"pending"`
	Approved     int `json:"approved"`
	Rejected     int `json:"rejected"`
	AutoApproved int `json:"auto_approved"`
	Flagged      int `json:"flagged"`
}

// toSubmissionResponse はドメインのSubmissionをレスポンス型に変換する。
func toSubmissionResponse(sub model.Submission) submissionResponse {
	return submissionResponse{
		ID:              sub.ID,
		CreatedAt:       sub.CreatedAt,
		IPAddress:       sub.IPAddress,
		Action:          string(sub.Action),
		Topic:           sub.Topic,
		Content:         sub.Content,
		Sources:         sub.Sources,
		Status:          string(sub.Status),
		Flags:           sub.Flags,
		ReviewedAt:      sub.ReviewedAt,
		RejectionReason: sub.RejectionReason,
	}
}

// ListPending はレビュー待ちの投稿一覧を取得する。
// GET /admin/pending?limit=50
func (h *AdminHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit := defaultPendingLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     model.ErrCodeInvalidRequest,
				Message:  "limitには正の整数を指定してください。",
				Category: "validation",
				Action:   "limitパラメータを確認してください。",
			})
			return
		}
		limit = parsed
	}

	submissions, err := h.gateway.PendingSubmissions(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]submissionResponse, len(submissions))
	for i, sub := range submissions {
		results[i] = toSubmissionResponse(sub)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pendingListResponse{Submissions: results})
}

// ReviewAction はレビュー待ちの投稿を承認または却下する。
// POST /admin/review_action
func (h *AdminHandler) ReviewAction(w http.ResponseWriter, r *http.Request) {
	var req reviewActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if req.SubmissionID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "submission_idを指定してください。",
			Category: "validation",
			Action:   "レビュー対象の投稿IDを指定してください。",
		})
		return
	}

	var (
		submission *model.Submission
		err        error
	)
	switch req.Action {
	case reviewActionApprove:
		submission, err = h.gateway.ApproveSubmission(r.Context(), req.SubmissionID)
	case reviewActionReject:
		submission, err = h.gateway.RejectSubmission(r.Context(), req.SubmissionID, req.Reason)
	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidReviewActionError(req.Action))
		return
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSubmissionResponse(*submission))
}

// GetStats は投稿の集計情報を取得する。
// GET /admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.gateway.Stats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statsResponse{
		Total:        stats.Total,
		Pending:      stats.Pending,
		Approved:     stats.Approved,
		Rejected:     stats.Rejected,
		AutoApproved: stats.AutoApproved,
		Flagged:      stats.Flagged,
	})
}
