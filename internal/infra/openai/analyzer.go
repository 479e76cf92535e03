// Package openai analyzes frames with an OpenAI vision model under a strict
// JSON response schema.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/ozaner/garbage-detector/internal/domain/entity"
)

const (
	DefaultModel     = "gpt-4o-2024-08-06"
	DefaultMaxTokens = 1000

	frameJPEGQuality = 85
)

const hazardPrompt = `Analyze this image from a garbage truck's point of view.
Identify obvious and clear safety issues related to collecting trash from trash cans visible in the frame.

Examples of safety issues to look for:
- Fire or smoke coming from trash cans
- Fire or smoke coming from the garbage truck itself or its collector crane.
- Hazardous materials visible (chemical containers, batteries, etc.)
- Dangerous and sharp objects protruding from trash cans
- People or animals too close to the collection area
- Weather-related hazards (ice, flooding, etc.)

Issues like a vehicle being too close to the collection area are not safety issues (unless they are extremely close.)

If no safety issues are detected, return an empty array.`

// analysisPayload is the response schema sent to the model. Strict schemas
// require every field, so Error is a plain string and empty means none.
type analysisPayload struct {
	SafetyIssues []issuePayload `json:"safety_issues"`
	Error        string         `json:"error"`
}

type issuePayload struct {
	IssueType   string `json:"issue_type"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

type Config struct {
	APIKey string
	// Model defaults to DefaultModel.
	Model string
	// BaseURL overrides the API endpoint, e.g. for a proxy or a test stub.
	BaseURL   string
	MaxTokens int
}

// Analyzer implements port.FrameAnalyzer against the OpenAI chat completions
// API. It is safe for concurrent use; the dispatch pool calls it from many
// workers.
type Analyzer struct {
	client    *openai.Client
	model     string
	maxTokens int
	schema    *jsonschema.Definition
	log       *zap.Logger
}

func NewAnalyzer(cfg Config, log *zap.Logger) (*Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	schema, err := jsonschema.GenerateSchemaForType(analysisPayload{})
	if err != nil {
		return nil, fmt.Errorf("generate response schema: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Analyzer{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		maxTokens: maxTokens,
		schema:    schema,
		log:       log,
	}, nil
}

func (a *Analyzer) Analyze(ctx context.Context, frame *image.RGBA) (entity.Analysis, error) {
	dataURL, err := encodeFrame(frame)
	if err != nil {
		return entity.Analysis{}, fmt.Errorf("encode frame: %w", err)
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: hazardPrompt,
					},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "safety_analysis",
				Schema: a.schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return entity.Analysis{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return entity.Analysis{}, errors.New("model returned no choices")
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &payload); err != nil {
		return entity.Analysis{}, fmt.Errorf("parse model response: %w", err)
	}

	issues := make([]entity.SafetyIssue, 0, len(payload.SafetyIssues))
	for _, issue := range payload.SafetyIssues {
		issues = append(issues, entity.SafetyIssue{
			IssueType:   issue.IssueType,
			Location:    issue.Location,
			Description: issue.Description,
		})
	}

	if len(issues) > 0 {
		a.log.Debug("model flagged frame", zap.Int("issues", len(issues)))
	}

	return entity.Analysis{Issues: issues, Err: payload.Error}, nil
}

func encodeFrame(frame *image.RGBA) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: frameJPEGQuality}); err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
