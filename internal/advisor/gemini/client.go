// Package gemini implements advisor.LLM on the Google Generative Language
// REST API (models/{model}:generateContent).
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"

	"spendmind/internal/advisor"
	"spendmind/internal/log"
)

// DefaultModel is used when Config.Model is blank.
const DefaultModel = "gemini-2.0-flash"

// DefaultEndpoint is the public v1beta API root.
const DefaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/"

// MaxOutputTokens caps every answer.
const MaxOutputTokens = 2048

// ErrEmptyAnswer is returned when the model produced no text.
var ErrEmptyAnswer = errors.New("model returned no text")

type Config struct {
	APIKey string
	Model  string
	// Endpoint overrides the API base URL, for tests.
	Endpoint string
}

// Client talks to one model.
type Client struct {
	hc       *http.Client
	endpoint string
	model    string
	logger   *log.Logger
}

// New creates a client authenticated with an API key. The HTTP client comes
// from the Google transport, so option.WithHTTPClient and friends apply.
func New(ctx context.Context, cfg Config, logger *log.Logger, extra ...option.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if logger == nil {
		logger = log.Default(log.ComponentAdvisor)
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey), option.WithEndpoint(endpoint)}
	opts = append(opts, extra...)

	hc, resolved, err := htransport.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create generative language client: %w", err)
	}
	if resolved != "" {
		endpoint = resolved
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	return &Client{hc: hc, endpoint: endpoint, model: model, logger: logger}, nil
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content *content `json:"content"`
	} `json:"candidates"`
}

// Generate sends p and returns the concatenated text of the first candidate.
func (c *Client) Generate(ctx context.Context, p advisor.Prompt) (string, error) {
	req := generateRequest{
		Contents:         contents(p),
		GenerationConfig: generationConfig{MaxOutputTokens: MaxOutputTokens},
	}
	if p.JSON {
		req.GenerationConfig.ResponseMimeType = "application/json"
	}
	if p.System != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: p.System}}}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	u := c.endpoint + c.model + ":generateContent"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.hc.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	defer googleapi.CloseBody(res)
	if err := googleapi.CheckResponse(res); err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var out generateResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	text := firstText(out)
	if text == "" {
		return "", ErrEmptyAnswer
	}
	c.logger.Debug("model answered", "model", c.model, "chars", len(text))
	return text, nil
}

func contents(p advisor.Prompt) []content {
	out := make([]content, 0, len(p.Turns))
	for _, t := range p.Turns {
		role := "user"
		if t.Role == advisor.RoleAssistant {
			role = "model"
		}
		out = append(out, content{Role: role, Parts: []part{{Text: t.Content}}})
	}
	if p.Attachment != nil {
		inline := part{InlineData: &blob{
			MimeType: p.Attachment.MimeType,
			Data:     base64.StdEncoding.EncodeToString(p.Attachment.Data),
		}}
		if len(out) == 0 {
			out = append(out, content{Role: "user"})
		}
		last := &out[len(out)-1]
		last.Parts = append(last.Parts, inline)
	}
	return out
}

func firstText(resp generateResponse) string {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range cand.Content.Parts {
			b.WriteString(p.Text)
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}
