// Package ai 封装对 Gemini 生成接口的调用与写作辅助功能。
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// 重试策略：仅对上游 503 重试，共 3 次尝试，间隔线性递增。
const (
	maxAttempts         = 3
	defaultRetryBackoff = time.Second
)

// noResultText 为上游返回空候选时的占位回复。
const noResultText = "No result."

// UpstreamError 表示上游返回的非 2xx 响应（503 重试耗尽后也会以此返回）。
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

// Client 是 Gemini generateContent 接口的最小 HTTP 客户端。
// 不使用官方 SDK：重试逻辑需要拿到原始状态码。
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
	backoff    time.Duration
}

// NewClient 构造客户端。baseURL 形如 https://generativelanguage.googleapis.com/v1beta。
func NewClient(baseURL, model, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
		backoff:    defaultRetryBackoff,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate 发送提示词并返回首个候选文本。
// 上游过载（503）时最多重试两次，间隔 1s、2s；其余非 2xx 直接返回 UpstreamError。
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		text, retryable, err := c.doGenerate(ctx, url, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable || attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}
	return "", lastErr
}

func (c *Client) doGenerate(ctx context.Context, url string, body []byte) (text string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("call upstream: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upErr := &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		return "", resp.StatusCode == http.StatusServiceUnavailable, upErr
	}

	var parsed generateResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", false, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return noResultText, false, nil
	}

	text = strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return noResultText, false, nil
	}
	return text, false, nil
}
