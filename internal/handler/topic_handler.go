// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/encyclo/internal/model"
	"github.com/hitoshi/encyclo/internal/security"
)

// TopicServiceInterface はトピックハンドラーが必要とするサービスインターフェース。
type TopicServiceInterface interface {
	// GetOrGenerate は記事を取得する。未生成の場合はLLMで生成する。
	GetOrGenerate(ctx context.Context, topicKey string) (*model.Article, error)
	// ListTopics は保存済みの全トピックキーを返す。
	ListTopics(ctx context.Context) ([]string, error)
}

// TopicHandler はトピック記事のHTTPハンドラー。
type TopicHandler struct {
	service TopicServiceInterface
}

// NewTopicHandler はTopicHandlerを生成する。
func NewTopicHandler(service TopicServiceInterface) *TopicHandler {
	return &TopicHandler{service: service}
}

// --- レスポンス型 ---

// topicResponse はトピック記事のレスポンス。
type topicResponse struct {
	Topic       string    `json:"topic"`
	Content     string    `json:"content"` // サニタイズ済みHTML
	Suggestions []string  `json:"suggestions"`
	GeneratedAt time.Time `json:"generated_at"`
}

// topicListResponse はトピック一覧のレスポンス。
type topicListResponse struct {
	Topics []string `json:"topics"`
}

// GetTopic はトピック記事を取得する。未生成の場合はLLMで生成する。
// GET /api/topics/:topic
func (h *TopicHandler) GetTopic(w http.ResponseWriter, r *http.Request) {
	topicKey, ok := security.ValidateTopicSlug(chi.URLParam(r, "topic"))
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidTopicError())
		return
	}

	article, err := h.service.GetOrGenerate(r.Context(), topicKey)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(topicResponse{
		Topic:       article.TopicKey,
		Content:     article.Content,
		Suggestions: article.Suggestions,
		GeneratedAt: article.GeneratedAt,
	})
}

// ListTopics は保存済みのトピック一覧を取得する。
// GET /api/topics
func (h *TopicHandler) ListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.service.ListTopics(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if topics == nil {
		topics = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(topicListResponse{Topics: topics})
}
