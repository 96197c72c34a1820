package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"pricewatch/internal/model"
	"pricewatch/internal/priceparse"
)

// LLMVendorConfig configures the vendor RPC (§4.5, §6.4).
type LLMVendorConfig struct {
	VendorID            string
	Endpoint            string
	Model               string
	APIKey              string
	CostPer1MPrompt     float64
	CostPer1MCompletion float64
	MaxPayloadChars     int
}

// UsageSink records every LLM call's token usage and cost under a batch ID
// (§4.5 "Accounting"). LLMExtractor.Extract always passes an empty batch ID,
// so usage is recorded per month only and is not attributed to a batch.
type UsageSink interface {
	RecordUsage(ctx context.Context, batchID string, promptTokens, completionTokens int, costUSD float64)
}

// LLMExtractor is the last-resort tier: trims the page HTML, submits it to
// a vendor LLM, and parses a strict JSON reply (C5, §4.5).
type LLMExtractor struct {
	Config LLMVendorConfig
	Client *http.Client
	Usage  UsageSink
}

// NewLLMExtractor builds an LLMExtractor. client may be nil to use
// http.DefaultClient.
func NewLLMExtractor(cfg LLMVendorConfig, client *http.Client, usage UsageSink) *LLMExtractor {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.openai.com/v1/chat/completions"
	}
	return &LLMExtractor{Config: cfg, Client: client, Usage: usage}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// llmPriceResponse is the strict JSON shape the prompt contract demands
// (§4.5: "a single JSON object ... and nothing else").
type llmPriceResponse struct {
	Price       *float64 `json:"price"`
	Currency    string   `json:"currency"`
	Confidence  float64  `json:"confidence"`
	Selector    *string  `json:"selector"`
	Explanation string   `json:"explanation"`
}

const systemPrompt = `You extract the current listed price of one specific product from trimmed HTML.
Respond with a single JSON object and nothing else, no markdown fences, matching exactly:
{"price": number|null, "currency": string, "confidence": number between 0 and 1, "selector": string|null, "explanation": string}
If no price can be confidently determined, set "price" to null.`

// Extract implements Extractor.
func (e *LLMExtractor) Extract(ctx context.Context, in Input) (*Result, error) {
	trimmed := TrimHTMLForLLM(in.HTML, e.Config.MaxPayloadChars)
	userPrompt := buildUserPrompt(in, trimmed)

	content, promptTokens, completionTokens, err := e.call(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, newError(CodeLLMParseFailed, "calling llm", err)
	}

	cost := estimateCost(e.Config, promptTokens, completionTokens)
	if e.Usage != nil {
		e.Usage.RecordUsage(ctx, "", promptTokens, completionTokens, cost)
	}

	parsed, err := parseLLMResponse(content)
	if err != nil {
		return nil, newError(CodeLLMParseFailed, "parsing llm response", err)
	}

	if parsed.Price == nil {
		return nil, newError(CodeParseNoPrice, "llm reported no price", nil)
	}

	price := decimal.NewFromFloat(*parsed.Price)
	if in.SiteRule != nil && !in.SiteRule.PriceRange.Contains(price) {
		return nil, newError(CodeValidationOutOfRange, "llm price outside site price range", nil)
	}

	selector := ""
	if parsed.Selector != nil {
		selector = *parsed.Selector
	}

	return &Result{
		Price:          price,
		Tier:           model.TierLLM,
		SelectorOrPath: selector,
		Confidence:     parsed.Confidence,
	}, nil
}

// LearnedSelectorFromResult implements §4.5's "Learning" rule: a selector
// the LLM returned becomes eligible as a learned selector only if,
// re-applied directly to the raw HTML, it reproduces the same price within
// 1 cent. This is the only path by which a machine acquires a new learned
// selector automatically.
func LearnedSelectorFromResult(rawHTML, selector string, price decimal.Decimal) bool {
	if selector == "" {
		return false
	}
	reparsed, ok := reparseWithSelector(rawHTML, selector)
	if !ok {
		return false
	}
	return reparsed.Sub(price).Abs().LessThanOrEqual(decimal.NewFromFloat(0.01))
}

func reparseWithSelector(rawHTML, selector string) (decimal.Decimal, bool) {
	doc, err := newDocFromHTML(rawHTML)
	if err != nil {
		return decimal.Decimal{}, false
	}
	node := doc.Find(selector).First()
	if node.Length() == 0 {
		return decimal.Decimal{}, false
	}
	return priceparse.Parse(node.Text())
}

func (e *LLMExtractor) call(ctx context.Context, systemPrompt, userPrompt string) (string, int, int, error) {
	reqBody := chatRequest{
		Model: e.Config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0,
		MaxTokens:   500,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Config.Endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", 0, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.Config.APIKey)

	resp, err := e.Client.Do(req)
	if err != nil {
		return "", 0, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, 0, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, 0, fmt.Errorf("vendor API error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResp chatResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", 0, 0, fmt.Errorf("parse response: %w", err)
	}
	if apiResp.Error != nil {
		return "", 0, 0, fmt.Errorf("vendor error: %s", apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return "", 0, 0, fmt.Errorf("no choices in vendor response")
	}

	return apiResp.Choices[0].Message.Content, apiResp.Usage.PromptTokens, apiResp.Usage.CompletionTokens, nil
}

// parseLLMResponse strips markdown code fences before parsing, mirroring
// the teacher's own response-cleanup step.
func parseLLMResponse(response string) (*llmPriceResponse, error) {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var parsed llmPriceResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal llm response: %w", err)
	}
	return &parsed, nil
}

func estimateCost(cfg LLMVendorConfig, promptTokens, completionTokens int) float64 {
	promptCost := float64(promptTokens) / 1_000_000 * cfg.CostPer1MPrompt
	completionCost := float64(completionTokens) / 1_000_000 * cfg.CostPer1MCompletion
	return promptCost + completionCost
}

func buildUserPrompt(in Input, trimmedHTML string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product name: %s\n", in.Machine.Name)
	if in.SiteRule != nil {
		fmt.Fprintf(&b, "Expected price range: %s to %s\n", in.SiteRule.PriceRange.Min.String(), in.SiteRule.PriceRange.Max.String())
	}
	b.WriteString("Trimmed page HTML:\n")
	b.WriteString(trimmedHTML)
	return b.String()
}
