package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Ramsey-B/banksia/pkg/models"
)

const comparisonSystemPrompt = `You are a patient record matching expert for Australian healthcare data.
Compare the two patient records and decide whether they describe the same person.
Account for typos, name variants, formatting differences and partially missing fields.
Respond with JSON only, no other text:
{"similarity_score": <0.0-1.0>, "is_match": <true|false>, "confidence": "<low|medium|high>", "match_reason": "<one sentence>"}`

const qualitySystemPrompt = `You are a data quality expert for Australian healthcare data.
Assess the completeness and validity of the patient record.
Respond with JSON only, no other text:
{"quality_score": <0-100>, "completeness": <0.0-1.0>, "issues": ["<issue>", ...]}`

// ModelOracle judges records through an OpenAI-compatible chat endpoint.
// Every response is validated against the verdict schemas before use; a
// response that does not parse is a schema violation for that unit only.
type ModelOracle struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// ModelConfig holds configuration for the model-backed oracle.
type ModelConfig struct {
	Endpoint string // Base URL, e.g. "https://api.openai.com/v1"
	Model    string
	APIKey   string // Optional for local endpoints
}

// NewModelOracle creates a model-backed oracle.
func NewModelOracle(cfg ModelConfig, logger *zap.Logger) (*ModelOracle, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	return &ModelOracle{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		logger: logger.Named("oracle"),
	}, nil
}

// Compare asks the model to judge one candidate pair.
func (o *ModelOracle) Compare(ctx context.Context, a, b *models.NormalizedRecord) (*ComparisonVerdict, error) {
	prompt := fmt.Sprintf("Record 1:\n%s\n\nRecord 2:\n%s", renderRecord(a), renderRecord(b))

	raw, err := o.complete(ctx, comparisonSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	return ParseComparison(raw)
}

// AssessQuality asks the model to assess one record.
func (o *ModelOracle) AssessQuality(ctx context.Context, rec *models.NormalizedRecord) (*QualityVerdict, error) {
	raw, err := o.complete(ctx, qualitySystemPrompt, "Patient record:\n"+renderRecord(rec))
	if err != nil {
		return nil, err
	}
	return ParseQuality(raw)
}

func (o *ModelOracle) complete(ctx context.Context, system, prompt string) (json.RawMessage, error) {
	start := time.Now()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		o.logger.Warn("oracle request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, classifyTransport(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &SchemaViolationError{Reason: "no choices in response"}
	}

	content := extractJSON(resp.Choices[0].Message.Content)
	o.logger.Debug("oracle request completed",
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(start)))

	return json.RawMessage(content), nil
}

// classifyTransport maps transport errors onto the oracle sentinels so the
// matcher records the right failure kind.
func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
		return fmt.Errorf("%w: rate limited: %v", ErrUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// extractJSON strips markdown code fences and surrounding prose, returning
// the first balanced JSON object in the response.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.Index(content, "```"); idx >= 0 {
			content = content[:idx]
		}
		content = strings.TrimSpace(content)
	}

	start := strings.IndexByte(content, '{')
	if start < 0 {
		return content
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = inString
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return content[start : i+1]
				}
			}
		}
	}
	return content[start:]
}

func renderRecord(rec *models.NormalizedRecord) string {
	data, err := json.MarshalIndent(rec.Normalized, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", rec.Normalized)
	}
	return string(data)
}
