package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cvbuilder/internal/document"
)

// ErrTextTooShort 表示校对文本不足 10 个字符。
var ErrTextTooShort = errors.New("text too short")

// 打分的两条短路回复。
const (
	tooSparseMessage   = "Your CV is too sparse. Add a summary, experience and skills so it can be scored accurately."
	unreadableMessage  = "The CV could not be evaluated reliably. Try writing more detailed descriptions."
	minProofreadLength = 10
	minScoreContentLen = 50
)

// ScoreResult 为打分接口的响应体。
type ScoreResult struct {
	Score   int    `json:"score"`
	Message string `json:"message"`
}

// Generator 抽象底层生成调用，测试时以桩替换。
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Assist 在生成客户端之上实现校对与打分两个业务能力。
type Assist struct {
	gen Generator
}

// NewAssist 构造写作辅助服务。
func NewAssist(gen Generator) *Assist {
	return &Assist{gen: gen}
}

// Generate 直接透传提示词。
func (a *Assist) Generate(ctx context.Context, prompt string) (string, error) {
	return a.gen.Generate(ctx, prompt)
}

// Proofread 修正文本的拼写与语法，保持原意。
func (a *Assist) Proofread(ctx context.Context, text string) (string, error) {
	if len(strings.TrimSpace(text)) < minProofreadLength {
		return "", ErrTextTooShort
	}

	prompt := fmt.Sprintf(
		"You are a CV editor. Fix spelling and grammar in the following passage. "+
			"Keep the meaning unchanged. Return only the corrected text:\n%q", text)
	out, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Score 对整份简历打分（0-100）。
// 内容过短时不访问上游，直接返回低分；上游返回无法解析的 JSON 时退回保守分。
func (a *Assist) Score(ctx context.Context, doc *document.Document) (ScoreResult, error) {
	if len(doc.PlainContent()) < minScoreContentLen {
		return ScoreResult{Score: 10, Message: tooSparseMessage}, nil
	}

	summary, err := scoreSummary(doc)
	if err != nil {
		return ScoreResult{}, err
	}

	prompt := fmt.Sprintf(`Act as a demanding recruiter. Score the CV below on a 0-100 scale.
CV data: %s

Scoring rules:
1. Sparse content, no measurable impact, or very short descriptions: score BELOW 50.
2. Generic content without industry keywords: score 50-70.
3. Only give above 80 when there are concrete numbers (e.g. 20%% growth, managed a team of 5).

Output requirement: return EXACTLY this JSON shape (no markdown):
{ "score": <number>, "message": "<one short remark naming the biggest weakness>" }`, summary)

	raw, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		return ScoreResult{}, err
	}

	cleaned := strings.TrimSpace(stripFences(raw))
	var result ScoreResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return ScoreResult{Score: 40, Message: unreadableMessage}, nil
	}
	return result, nil
}

// scoreSummary 将文档压缩为打分所需的精简 JSON。
func scoreSummary(doc *document.Document) (string, error) {
	position := doc.PersonalInfo.Position
	if position == "" {
		position = "Unknown position"
	}

	experience := make([]string, 0, len(doc.Experience))
	for _, e := range doc.Experience {
		experience = append(experience, fmt.Sprintf("%s at %s: %s", e.Position, e.Company, e.Description))
	}
	skills := make([]string, 0, len(doc.Skills))
	for _, s := range doc.Skills {
		skills = append(skills, s.Value)
	}
	projects := make([]string, 0, len(doc.Projects))
	for _, p := range doc.Projects {
		projects = append(projects, fmt.Sprintf("%s: %s", p.Name, p.Description))
	}

	data, err := json.Marshal(map[string]any{
		"position":   position,
		"summary":    doc.PersonalInfo.Summary,
		"experience": experience,
		"skills":     skills,
		"projects":   projects,
	})
	if err != nil {
		return "", fmt.Errorf("encode score summary: %w", err)
	}
	return string(data), nil
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	return strings.ReplaceAll(s, "```", "")
}
