// Package nutrition estimates the nutritional content of a meal photo by
// asking a vision-capable chat model to fill in a fixed function schema.
package nutrition

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/isdelr/mealsnap-be/internal/common"
)

const toolName = "record_nutrition"

// Analysis is the model's estimate for one image and weight.
type Analysis struct {
	Description string  `json:"description"`
	Calories    float64 `json:"calories"`
	Protein     float64 `json:"protein"`
	Carbs       float64 `json:"carbs"`
	Fat         float64 `json:"fat"`
}

// Request carries the inputs of a single analysis.
type Request struct {
	Image   []byte
	Weight  float64 // grams, plate excluded
	Details string
}

// Analyzer produces a nutrition estimate for a meal photo.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (*Analysis, error)
}

// Config configures the model client.
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	cfg Config
	api *openai.Client
}

// NewClient creates a Client. With an empty API key every Analyze call
// fails with common.ErrConfiguration before touching the network.
func NewClient(cfg Config) *Client {
	c := &Client{cfg: cfg}
	if cfg.APIKey == "" {
		return c
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	c.api = openai.NewClientWithConfig(oc)
	return c
}

var nutritionTool = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        toolName,
		Description: "Record the estimated nutritional content of the whole meal in the photo.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"description": {
					Type:        jsonschema.String,
					Description: "The identified ingredients, each with its estimated weight in grams and its calories, protein, carbs and fat.",
				},
				"calories": {Type: jsonschema.Number, Description: "Total energy of the meal in kcal."},
				"protein":  {Type: jsonschema.Number, Description: "Total protein in grams."},
				"carbs":    {Type: jsonschema.Number, Description: "Total carbohydrates in grams."},
				"fat":      {Type: jsonschema.Number, Description: "Total fat in grams."},
			},
			Required: []string{"description", "calories", "protein", "carbs", "fat"},
		},
	},
}

// BuildPrompt writes the instruction sent alongside the image.
func BuildPrompt(weight float64, details string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This is a photo of a meal weighing %sg. ", strconv.FormatFloat(weight, 'f', -1, 64))
	b.WriteString("The weight is of the food only and does not include the plate, bowl or any other container. ")
	b.WriteString("Identify the ingredients and estimate the total calories and the protein, carbohydrates and fat in grams for the whole meal. ")
	b.WriteString("In the description, list every ingredient with its estimated weight and nutrition.")
	if details = strings.TrimSpace(details); details != "" {
		b.WriteString("\n\nAdditional details about the meal: ")
		b.WriteString(details)
	}
	b.WriteString("\n\nReport the result by calling " + toolName + ".")
	return b.String()
}

// DataURI encodes image as a base64 data URI, sniffing its MIME type.
func DataURI(image []byte) string {
	mime := http.DetectContentType(image)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
}

// Analyze makes exactly one model call. Failures are not retried.
func (c *Client) Analyze(ctx context.Context, req Request) (*Analysis, error) {
	if c.api == nil {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set: %w", common.ErrConfiguration)
	}
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("image is empty: %w", common.ErrValidation)
	}
	if math.IsNaN(req.Weight) || math.IsInf(req.Weight, 0) || req.Weight <= 0 {
		return nil, fmt.Errorf("weight must be positive: %w", common.ErrValidation)
	}

	started := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: BuildPrompt(req.Weight, req.Details)},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    DataURI(req.Image),
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		Tools: []openai.Tool{nutritionTool},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: toolName},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w: %w", common.ErrUpstream, err)
	}

	log.Debug().
		Str("model", resp.Model).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Dur("elapsed", time.Since(started)).
		Msg("Nutrition analysis completed")

	return parseResponse(resp)
}

func parseResponse(resp openai.ChatCompletionResponse) (*Analysis, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices: %w", common.ErrUpstream)
	}

	for _, call := range resp.Choices[0].Message.ToolCalls {
		if call.Function.Name == toolName {
			return parseArguments(call.Function.Arguments)
		}
	}
	return nil, fmt.Errorf("model did not call %s (finish reason %q): %w",
		toolName, resp.Choices[0].FinishReason, common.ErrUpstream)
}

func parseArguments(args string) (*Analysis, error) {
	var raw struct {
		Description *string  `json:"description"`
		Calories    *float64 `json:"calories"`
		Protein     *float64 `json:"protein"`
		Carbs       *float64 `json:"carbs"`
		Fat         *float64 `json:"fat"`
	}
	if err := json.Unmarshal([]byte(args), &raw); err != nil {
		return nil, fmt.Errorf("malformed tool arguments: %w: %w", common.ErrUpstream, err)
	}
	if raw.Description == nil || raw.Calories == nil || raw.Protein == nil || raw.Carbs == nil || raw.Fat == nil {
		return nil, fmt.Errorf("tool arguments are missing required fields: %w", common.ErrUpstream)
	}

	a := &Analysis{
		Description: *raw.Description,
		Calories:    *raw.Calories,
		Protein:     *raw.Protein,
		Carbs:       *raw.Carbs,
		Fat:         *raw.Fat,
	}
	if a.Calories < 0 || a.Protein < 0 || a.Carbs < 0 || a.Fat < 0 {
		return nil, fmt.Errorf("model returned negative nutrition values: %w", common.ErrUpstream)
	}
	return a, nil
}
