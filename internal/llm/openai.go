package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// defaultOpenAIModel はモデル未指定時に使用するモデル。
const defaultOpenAIModel = "gpt-4.1"

// OpenAIProvider はOpenAIのChat Completions APIを使うプロバイダ。
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// コンパイル時のインターフェース実装チェック
var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider はOpenAIProviderを生成する。
// APIキーが未設定の場合はエラーを返す。
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name はプロバイダ名を返す。
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// IsAvailable はAPIキーが有効でAPIに到達できるかを確認する。
// モデル一覧の取得を軽量な疎通確認として使う。
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	if _, err := p.client.ListModels(ctx); err != nil {
		slog.Warn("OpenAI APIに到達できません", slog.String("error", err.Error()))
		return false
	}
	return true
}

// Generate はChat Completions APIでテキストを生成する。
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	model := p.config.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}

	timeout := p.config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctxWithTimeout, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API呼び出しに失敗: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI APIが空の応答を返しました")
	}

	return &Response{
		Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:      model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}
