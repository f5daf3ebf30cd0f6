package llm

import (
	"fmt"
	"strings"
)

// NewProvider は設定に応じたLLMプロバイダを生成する。
// プロバイダ名が空の場合は(nil, nil)を返し、LLM機能を無効として扱う。
// 未知のプロバイダ名の場合はエラーを返す。
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, ollama)", config.Provider)
	}
}
