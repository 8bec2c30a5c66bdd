package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prajwalbharadwajbm/mailproof/internal/imageutil"
	"github.com/prajwalbharadwajbm/mailproof/internal/models"
	"github.com/sashabaranov/go-openai"
)

// Config configures the OpenAI generator.
type Config struct {
	APIKey      string
	BaseURL     string
	TextModel   string
	VisionModel string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

const (
	textSystemPrompt    = "You are an email marketing expert. Always respond with valid JSON only."
	historySystemSuffix = " Use historical examples as inspiration but create fresh, unique content."
	visionMaxTokens     = 300
)

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// OpenAIGenerator calls the chat completions API for text and vision.
type OpenAIGenerator struct {
	client *openai.Client
	cfg    Config
	logger kitlog.Logger
}

// New returns an OpenAI-backed generator, or a fallback-only one when no API key is set.
func New(cfg Config, logger kitlog.Logger) Generator {
	if cfg.APIKey == "" {
		level.Warn(logger).Log("msg", "OPENAI_API_KEY not set, content generation uses fallbacks")
		return FallbackGenerator{}
	}
	return NewOpenAIGenerator(cfg, logger)
}

// NewOpenAIGenerator builds the client; BaseURL points it at a compatible endpoint.
func NewOpenAIGenerator(cfg Config, logger kitlog.Logger) *OpenAIGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.TextModel == "" {
		cfg.TextModel = openai.GPT4o
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = openai.GPT4o
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 800
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		logger: kitlog.With(logger, "component", "openai"),
	}
}

// OptimizeText rewrites the copy; any failure yields FallbackText.
func (g *OpenAIGenerator) OptimizeText(ctx context.Context, in TextInput) models.TextOptimization {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	system := textSystemPrompt
	if len(in.History) > 0 {
		system += historySystemSuffix
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.cfg.TextModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: buildTextPrompt(in)},
		},
		Temperature: float32(g.cfg.Temperature),
		MaxTokens:   g.cfg.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		level.Error(g.logger).Log("msg", "text optimization failed, using fallback", "err", err)
		return FallbackText(in)
	}
	if len(resp.Choices) == 0 {
		level.Warn(g.logger).Log("msg", "OpenAI returned no choices, using fallback")
		return FallbackText(in)
	}

	var out models.TextOptimization
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		level.Error(g.logger).Log("msg", "text optimization returned invalid JSON, using fallback", "err", err)
		return FallbackText(in)
	}

	level.Debug(g.logger).Log("msg", "text content processed", "history", len(in.History))
	return normalizeText(out, in)
}

// AnalyzeImage describes one image; any failure yields FallbackImage.
func (g *OpenAIGenerator) AnalyzeImage(ctx context.Context, data []byte, label string) models.ImageAnalysis {
	prepared, err := imageutil.PrepareForVision(data)
	if err != nil {
		level.Warn(g.logger).Log("msg", "image could not be prepared for vision", "image", label, "err", err)
		return FallbackImage(label)
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.cfg.VisionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: buildVisionPrompt(label)},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(prepared),
						},
					},
				},
			},
		},
		MaxTokens: visionMaxTokens,
	})
	if err != nil {
		level.Error(g.logger).Log("msg", "image analysis failed, using fallback", "image", label, "err", err)
		return FallbackImage(label)
	}
	if len(resp.Choices) == 0 {
		return FallbackImage(label)
	}

	out, err := parseImageAnalysis(resp.Choices[0].Message.Content)
	if err != nil {
		level.Error(g.logger).Log("msg", "image analysis returned invalid JSON, using fallback", "image", label, "err", err)
		return FallbackImage(label)
	}
	return normalizeImage(out, label)
}

func (g *OpenAIGenerator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.cfg.Timeout)
}

// parseImageAnalysis accepts bare JSON or JSON wrapped in prose / code fences.
func parseImageAnalysis(content string) (models.ImageAnalysis, error) {
	var out models.ImageAnalysis
	if err := json.Unmarshal([]byte(content), &out); err == nil {
		return out, nil
	}
	match := jsonObject.FindString(content)
	if match == "" {
		return out, fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(match), &out); err != nil {
		return out, err
	}
	return out, nil
}

func orNotProvided(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not provided"
	}
	return s
}

func buildTextPrompt(in TextInput) string {
	var b strings.Builder
	b.WriteString("You are an email marketing expert. Extract and optimize the following campaign content:")

	if len(in.History) > 0 {
		b.WriteString("\n\nHIGH-PERFORMING EXAMPLES FROM PAST CAMPAIGNS:\n")
		for i, ex := range in.History {
			if i == maxHistoryInText {
				break
			}
			fmt.Fprintf(&b, "\nExample %d (Performance Score: %.2f):\n", i+1, ex.PerformanceScore)
			if ex.SubjectLine != "" {
				fmt.Fprintf(&b, "  Subject: %s\n", ex.SubjectLine)
			}
			if ex.PreviewText != "" {
				fmt.Fprintf(&b, "  Preview: %s\n", ex.PreviewText)
			}
			if ex.CTAText != "" {
				fmt.Fprintf(&b, "  CTA: %s\n", ex.CTAText)
			}
		}
		b.WriteString("\nUse these patterns as inspiration while creating fresh, unique content.\n")
	}

	fmt.Fprintf(&b, `

INPUT:
Subject: %s
Body: %s
CTA: %s

TASKS:
1. Generate 3 subject line variations (max 50 chars each)
2. Create preview text (50-90 chars) that complements the best subject line
3. Structure body copy into:
   - Headline (5-10 words, compelling and clear)
   - Body (2-3 short paragraphs, max 150 words total)
   - CTA text (2-4 words, action-oriented)
4. Suggest improvements for clarity and urgency

OUTPUT FORMAT: JSON only, no markdown, no code blocks
{
  "subject_lines": ["variation 1", "variation 2", "variation 3"],
  "preview_text": "preview text here",
  "headline": "compelling headline",
  "body_paragraphs": ["paragraph 1", "paragraph 2"],
  "cta_text": "action text",
  "suggestions": "brief improvement suggestions"
}`, orNotProvided(in.SubjectLine), orNotProvided(in.BodyCopy), orNotProvided(in.CTAText))

	return b.String()
}

func buildVisionPrompt(label string) string {
	return fmt.Sprintf(`Analyze this %s for use in an email marketing campaign.

TASKS:
1. Generate descriptive alt text (max 125 chars, be specific about what's in the image)
2. Identify if image contains text (true/false)
3. Assess image quality (good/fair/poor)
4. Suggest cropping if needed (null if no cropping needed, or brief description)

OUTPUT FORMAT: JSON only, no markdown, no code blocks
{
  "alt_text": "descriptive alt text",
  "contains_text": true,
  "quality": "good",
  "crop_suggestion": null
}`, label)
}

// FallbackGenerator never calls a model.
type FallbackGenerator struct{}

func (FallbackGenerator) OptimizeText(_ context.Context, in TextInput) models.TextOptimization {
	return FallbackText(in)
}

func (FallbackGenerator) AnalyzeImage(_ context.Context, _ []byte, label string) models.ImageAnalysis {
	return FallbackImage(label)
}
