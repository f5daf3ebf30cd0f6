package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/encyclo/internal/llm"
)

// Pinger はヘルスチェックが必要とするデータベース接続のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	db       Pinger
	provider llm.Provider // nilの場合はLLM機能無効
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(db Pinger, provider llm.Provider) *HealthHandler {
	return &HealthHandler{db: db, provider: provider}
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	LLM      string `json:"llm"`
}

// Check はサービスの稼働状態を返す。
// データベースに接続できない場合は503を返す。
// LLMの状態は情報として含めるが、可用性の判定には使わない。
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "ok"}

	statusCode := http.StatusOK
	if err := h.db.PingContext(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Database = "unreachable"
		statusCode = http.StatusServiceUnavailable
	}

	switch {
	case h.provider == nil:
		resp.LLM = "disabled"
	case h.provider.IsAvailable(r.Context()):
		resp.LLM = "ok"
	default:
		resp.LLM = "unreachable"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}
