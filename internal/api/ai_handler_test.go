package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvbuilder/internal/ai"
)

type errGenerator struct {
	err error
}

func (g *errGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "", g.err
}

func TestGenerateSurfacesUpstreamError(t *testing.T) {
	gen := &errGenerator{err: &ai.UpstreamError{
		Status: http.StatusBadRequest,
		Body:   `{"error":"API key not valid"}`,
	}}
	h := NewAIHandler(ai.NewAssist(gen))

	c, w := testContext(t, jsonRequest(t, http.MethodPost, "/ai/generate", gin.H{"prompt": "hi"}), 1)
	h.Generate(c)

	// 上游失败原样透出状态码与响应体，不吞成笼统 500。
	require.Equal(t, http.StatusBadGateway, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "Google API Error: 400")
	assert.Contains(t, body["error"], "API key not valid")
}

func TestGenerateTruncatesLongUpstreamBody(t *testing.T) {
	gen := &errGenerator{err: &ai.UpstreamError{
		Status: http.StatusServiceUnavailable,
		Body:   strings.Repeat("x", 4096),
	}}
	h := NewAIHandler(ai.NewAssist(gen))

	c, w := testContext(t, jsonRequest(t, http.MethodPost, "/ai/generate", gin.H{"prompt": "hi"}), 1)
	h.Generate(c)

	require.Equal(t, http.StatusBadGateway, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.LessOrEqual(t, len(body["error"]), maxUpstreamBodyLen+64)
}

func TestGenerateHidesNonUpstreamError(t *testing.T) {
	gen := &errGenerator{err: errors.New("dial tcp: connection refused")}
	h := NewAIHandler(ai.NewAssist(gen))

	c, w := testContext(t, jsonRequest(t, http.MethodPost, "/ai/generate", gin.H{"prompt": "hi"}), 1)
	h.Generate(c)

	// 本地传输错误没有上游状态可透出，保持笼统提示。
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}
