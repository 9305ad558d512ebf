// Package anthropic はAnthropic Messages APIのクライアントを提供する。
// AI支援機能（人物パース、検索強化、ギフト推薦、会話）のLLM呼び出しを担う。
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

const (
	// defaultEndpoint はAnthropic Messages APIのエンドポイント。
	defaultEndpoint = "https://api.anthropic.com/v1/messages"
	// apiVersion はanthropic-versionヘッダーに設定するAPIバージョン。
	apiVersion = "2023-06-01"
)

// Message は会話の1ターンを表す。Roleは "user" または "assistant"。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options は1回の呼び出しの生成パラメータを表す。
// ゼロ値のフィールドにはクライアントのデフォルト値が適用される。
type Options struct {
	Temperature float64
	MaxTokens   int
}

// APIStatusError はAPIが非2xxステータスを返した場合のエラー。
type APIStatusError struct {
	StatusCode int
	Body       string
}

func (e *APIStatusError) Error() string {
	return fmt.Sprintf("Anthropic APIがステータス %d を返しました: %s", e.StatusCode, e.Body)
}

// IsCreditExhausted はエラーがAPIクレジット残高不足によるものかどうかを判定する。
func IsCreditExhausted(err error) bool {
	var statusErr *APIStatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return strings.Contains(statusErr.Body, "credit balance is too low")
}

// Client はAnthropic Messages APIのクライアント。
// rate.Limiterで呼び出し頻度を制御する。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	limiter     *rate.Limiter
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	endpoint    string // テスト用にエンドポイントを差し替え可能
}

// ClientConfig はClientの生成パラメータ。
type ClientConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	CallsPerMin int
}

// NewClient はClientの新しいインスタンスを生成する。
// APIキーが空の場合はエラーを返す。
func NewClient(httpClient *http.Client, logger *slog.Logger, cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEYが設定されていません")
	}
	if cfg.CallsPerMin <= 0 {
		cfg.CallsPerMin = 60
	}

	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		limiter:     rate.NewLimiter(rate.Limit(float64(cfg.CallsPerMin)/60.0), 1),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		endpoint:    defaultEndpoint,
	}, nil
}

// messagesRequest はMessages APIのリクエストボディ。
type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
}

// messagesResponse はMessages APIのレスポンスボディ。
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete はシステムプロンプトとメッセージ列を送信し、応答テキストを返す。
// レート制限の待機でコンテキストがキャンセルされた場合はそのエラーを返す。
// 非2xxステータスの場合は*APIStatusErrorを返す。
func (c *Client) Complete(ctx context.Context, system string, messages []Message, opts Options) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("メッセージが空です")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("レート制限の待機に失敗しました: %w", err)
	}

	temperature := c.temperature
	if opts.Temperature != 0 {
		temperature = opts.Temperature
	}
	maxTokens := c.maxTokens
	if opts.MaxTokens != 0 {
		maxTokens = opts.MaxTokens
	}

	reqBody := messagesRequest{
		Model:       c.model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		System:      system,
		Messages:    messages,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("リクエストボディの構築に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Anthropic APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("model", c.model),
		)
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("Anthropic APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("model", c.model),
		)
		return "", &APIStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result messagesResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	// 空のcontentはエラーではなく空文字列として返す
	if len(result.Content) == 0 {
		return "", nil
	}

	return result.Content[0].Text, nil
}
