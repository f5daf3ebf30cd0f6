// Package llm は記事の生成・更新に使うLLMプロバイダの抽象化を提供する。
//
// OpenAIとOllama（ローカルモデル）の2つの実装を持ち、
// 設定でプロバイダを切り替えられる。プロバイダ未設定の場合はLLM機能を無効化する。
package llm

import (
	"context"
	"time"
)

// Provider はLLMプロバイダのインターフェースを定義する。
type Provider interface {
	// Name はプロバイダ名を返す。
	Name() string

	// Generate はプロンプトからテキストを生成する。
	Generate(ctx context.Context, req Request) (*Response, error)

	// IsAvailable はプロバイダが設定済みで到達可能かを確認する。
	IsAvailable(ctx context.Context) bool
}

// Request はテキスト生成1回分の入力を表す。
type Request struct {
	// System はシステムプロンプト。
	System string
	// Prompt はユーザープロンプト。ユーザー由来の内容は
	// サニタイズ済みかつ区切り文字で囲まれていること。
	Prompt string
	// MaxTokens は応答の最大トークン数。0の場合はConfigの値を使う。
	MaxTokens int
	// Temperature は生成のランダム性。記事生成は0.7、抽出系は0.3を使う。
	Temperature float32
}

// Response はテキスト生成の結果を表す。
type Response struct {
	// Text は生成されたテキスト。前後の空白は除去済み。
	Text string
	// Model は実際に使用されたモデル名。
	Model string
	// TokensUsed は消費トークン数。プロバイダが返さない場合は概算値。
	TokensUsed int
}

// Config はLLMプロバイダの設定を保持する。
type Config struct {
	// Provider はプロバイダ名（"openai"、"ollama"、空でLLM無効）。
	Provider string
	// Model はモデル名。空の場合はプロバイダごとの既定値を使う。
	Model string
	// APIKey はOpenAI用のAPIキー。
	APIKey string
	// BaseURL はOllamaのエンドポイント。
	BaseURL string
	// Timeout はAPI呼び出しのタイムアウト。
	Timeout time.Duration
	// MaxTokens は応答の既定最大トークン数。
	MaxTokens int
}
