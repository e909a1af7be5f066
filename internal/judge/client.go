package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

var (
	// ErrBadVerdict marks a judge response that parsed but failed validation.
	// Callers treat it like any other judging failure.
	ErrBadVerdict = errors.New("unusable judge verdict")
)

const systemPrompt = `You are a brutal roast battle judge. Score each roast on:
- Savagery (how brutal/cutting)
- Creativity (originality)
- Delivery (flow and word choice)
- Relevance (staying on topic)

Respond ONLY with valid JSON in this exact format:
{
  "roast1_score": 75,
  "roast2_score": 82,
  "roast1_breakdown": "Savagery: 8/10, Creativity: 7/10, Delivery: 7/10, Relevance: 8/10",
  "roast2_breakdown": "Savagery: 9/10, Creativity: 8/10, Delivery: 8/10, Relevance: 8/10",
  "commentary": "Short savage comment about the round winner"
}`

// Verdict is a validated, decisive round score. Score1 never equals Score2.
type Verdict struct {
	Score1     int
	Score2     int
	Breakdown1 string
	Breakdown2 string
	Commentary string
}

type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	randN          func(n int) int
}

type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

// WithRand overrides the tie-break source. Tests inject a fixed value.
func WithRand(fn func(n int) int) Option {
	return func(c *Client) { c.randN = fn }
}

func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		model:          "gpt-4o-mini",
		http:           &fasthttp.Client{ReadTimeout: 30 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 30 * time.Second,
		randN:          rand.Intn,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Judge scores two roasts for a prompt. The returned verdict is always
// decisive: on a tie the first roast gets a random 1-5 bonus.
func (c *Client) Judge(ctx context.Context, prompt, roast1, roast2 string) (*Verdict, error) {
	userMsg := fmt.Sprintf("Prompt: %q\n\nRoast 1: %q\n\nRoast 2: %q\n\nJudge these roasts and respond with JSON only.",
		prompt, roast1, roast2)

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userMsg},
		},
		MaxTokens:      300,
		Temperature:    0.8,
		ResponseFormat: &respFormat{Type: "json_object"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.baseURL + "/chat/completions")
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.SetBody(body)

	if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
		return nil, fmt.Errorf("judge request failed: %w", err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return nil, fmt.Errorf("judge api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
	}

	var cr chatResponse
	if err := json.Unmarshal(resp.Body(), &cr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrBadVerdict)
	}

	v, err := parseVerdict(cr.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	if v.Score1 == v.Score2 {
		v.Score1 += c.randN(5) + 1
	}
	return v, nil
}

func parseVerdict(content string) (*Verdict, error) {
	var raw struct {
		Roast1Score     *int   `json:"roast1_score"`
		Roast2Score     *int   `json:"roast2_score"`
		Roast1Breakdown string `json:"roast1_breakdown"`
		Roast2Breakdown string `json:"roast2_breakdown"`
		Commentary      string `json:"commentary"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadVerdict, err)
	}
	if raw.Roast1Score == nil || raw.Roast2Score == nil {
		return nil, fmt.Errorf("%w: missing scores", ErrBadVerdict)
	}
	if *raw.Roast1Score < 0 || *raw.Roast1Score > 100 || *raw.Roast2Score < 0 || *raw.Roast2Score > 100 {
		return nil, fmt.Errorf("%w: score out of range", ErrBadVerdict)
	}
	if strings.TrimSpace(raw.Commentary) == "" {
		return nil, fmt.Errorf("%w: missing commentary", ErrBadVerdict)
	}
	return &Verdict{
		Score1:     *raw.Roast1Score,
		Score2:     *raw.Roast2Score,
		Breakdown1: raw.Roast1Breakdown,
		Breakdown2: raw.Roast2Breakdown,
		Commentary: raw.Commentary,
	}, nil
}

// stripFences removes markdown code fences some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
