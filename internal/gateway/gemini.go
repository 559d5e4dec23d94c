package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dyluth/compass/pkg/canvas"
)

// DefaultBaseURL is the public Gemini REST endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// GeminiConfig configures a Gemini client.
type GeminiConfig struct {
	APIKey            string
	BaseURL           string        // Defaults to DefaultBaseURL
	Model             string        // Used for structured operations
	DraftModel        string        // Used for Draft; defaults to Model
	Temperature       float64       // Used for refine and extraction
	RequestsPerMinute int           // 0 disables rate limiting
	Timeout           time.Duration // Per request; defaults to 60s
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// Gemini implements Gateway over the Gemini generateContent REST API.
type Gemini struct {
	cfg     GeminiConfig
	http    *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

var _ Gateway = (*Gemini)(nil)

// NewGemini creates a Gemini gateway. Returns an error if no API key is configured.
func NewGemini(cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is not set")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("gemini: model is not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.DraftModel == "" {
		cfg.DraftModel = cfg.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), 1)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Gemini{cfg: cfg, http: client, limiter: limiter, log: log}, nil
}

// Internal structures for the generateContent request and reply

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      *float64       `json:"temperature,omitempty"`
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// call describes one generateContent request.
type call struct {
	op          string
	model       string
	parts       []geminiPart
	shape       *shape // nil for prose
	temperature *float64
}

func (g *Gemini) generate(ctx context.Context, c call) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("gemini %s: rate limit: %w", c.op, err)
	}

	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: c.parts}},
	}
	if c.shape != nil || c.temperature != nil {
		body.GenerationConfig = &geminiGenerationConfig{Temperature: c.temperature}
		if c.shape != nil {
			body.GenerationConfig.ResponseMimeType = "application/json"
			body.GenerationConfig.ResponseSchema = c.shape.responseSchema()
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("gemini %s: marshal request: %w", c.op, err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.cfg.BaseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("gemini %s: create request: %w", c.op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.cfg.APIKey)

	start := time.Now()
	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", c.op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	g.log.Debug("gemini request complete", "op", c.op, "model", c.model, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gemini %s: status %d: %s", c.op, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("%w: gemini %s: undecodable envelope: %v", ErrMalformedResponse, c.op, err)
	}
	if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini %s: prompt blocked: %s", c.op, gr.PromptFeedback.BlockReason)
	}
	if len(gr.Candidates) == 0 {
		return "", fmt.Errorf("%w: gemini %s: no candidates", ErrMalformedResponse, c.op)
	}

	var text strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("%w: gemini %s: empty reply", ErrMalformedResponse, c.op)
	}
	return text.String(), nil
}

func textParts(prompt string) []geminiPart {
	return []geminiPart{{Text: prompt}}
}

// Diagnose implements Gateway.
func (g *Gemini) Diagnose(ctx context.Context, snap canvas.BlockTexts) ([]string, error) {
	text, err := g.generate(ctx, call{op: "diagnose", model: g.cfg.Model, parts: textParts(diagnosePrompt(snap)), shape: findingsShape})
	if err != nil {
		return nil, err
	}

	var findings []string
	if err := findingsShape.decode(text, &findings); err != nil {
		return nil, err
	}
	return boundFindings(findings), nil
}

// Refine implements Gateway.
func (g *Gemini) Refine(ctx context.Context, snap canvas.BlockTexts) (canvas.BlockTexts, error) {
	content := snap.NonEmpty()
	if len(content) == 0 {
		return canvas.BlockTexts{}, nil
	}

	ids := make([]canvas.BlockID, 0, len(content))
	for id := range content {
		ids = append(ids, id)
	}
	s, err := blockShape(ids, true)
	if err != nil {
		return nil, err
	}

	temp := g.cfg.Temperature
	text, err := g.generate(ctx, call{op: "refine", model: g.cfg.Model, parts: textParts(refinePrompt(content)), shape: s, temperature: &temp})
	if err != nil {
		return nil, err
	}
	return g.blocks(s, "refine", text)
}

// FixGap implements Gateway.
func (g *Gemini) FixGap(ctx context.Context, snap canvas.BlockTexts, warning string) (canvas.BlockTexts, error) {
	s, err := blockShape(canvas.BlockIDs(), false)
	if err != nil {
		return nil, err
	}
	text, err := g.generate(ctx, call{op: "fix-gap", model: g.cfg.Model, parts: textParts(fixGapPrompt(snap, warning)), shape: s})
	if err != nil {
		return nil, err
	}
	return g.blocks(s, "fix-gap", text)
}

// Extract implements Gateway. The three block groups are requested in parallel;
// a group whose reply is malformed contributes nothing, any other failure fails the whole extraction.
func (g *Gemini) Extract(ctx context.Context, doc Document) (canvas.BlockTexts, error) {
	if len(doc.Data) == 0 {
		return nil, fmt.Errorf("document %q is empty", doc.Name)
	}
	mime := doc.MimeType
	if mime == "" {
		mime = "application/pdf"
	}
	inline := &geminiInlineData{MimeType: mime, Data: base64.StdEncoding.EncodeToString(doc.Data)}
	temp := g.cfg.Temperature

	results := make([]canvas.BlockTexts, len(extractionGroups))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, group := range extractionGroups {
		i, group := i, group
		eg.Go(func() error {
			s, err := blockShape(group.Blocks, true)
			if err != nil {
				return err
			}
			text, err := g.generate(egCtx, call{
				op:          "extract",
				model:       g.cfg.Model,
				parts:       []geminiPart{{Text: extractPrompt(group)}, {InlineData: inline}},
				shape:       s,
				temperature: &temp,
			})
			if err == nil {
				results[i], err = g.blocks(s, "extract", text)
			}
			if IsMalformed(err) {
				g.log.Warn("extraction group skipped", "group", group.Name, "error", err)
				return nil
			}
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	merged := canvas.BlockTexts{}
	for _, r := range results {
		merged = merged.Merge(r)
	}
	return merged, nil
}

// MapAnswer implements Gateway.
func (g *Gemini) MapAnswer(ctx context.Context, q canvas.WizardQuestion, answer string) (canvas.BlockTexts, error) {
	s, err := blockShape(q.TargetBlocks, false)
	if err != nil {
		return nil, err
	}
	text, err := g.generate(ctx, call{op: "map-answer", model: g.cfg.Model, parts: textParts(mapAnswerPrompt(q, answer)), shape: s})
	if err != nil {
		return nil, err
	}
	mapped, err := g.blocks(s, "map-answer", text)
	if err != nil {
		return nil, err
	}
	return mapped.Only(q.TargetBlocks), nil
}

// Draft implements Gateway.
func (g *Gemini) Draft(ctx context.Context, kind DraftKind, projectName string, snap canvas.BlockTexts) (string, error) {
	if err := kind.Validate(); err != nil {
		return "", err
	}
	return g.generate(ctx, call{op: "draft-" + string(kind), model: g.cfg.DraftModel, parts: textParts(draftPrompt(kind, projectName, snap))})
}

// DetectJargon implements Gateway.
func (g *Gemini) DetectJargon(ctx context.Context, text string) ([]JargonTerm, error) {
	reply, err := g.generate(ctx, call{op: "jargon", model: g.cfg.Model, parts: textParts(jargonPrompt(text)), shape: jargonShape})
	if err != nil {
		return nil, err
	}
	var terms []JargonTerm
	if err := jargonShape.decode(reply, &terms); err != nil {
		return nil, err
	}
	return terms, nil
}

// CheckFalsifiability implements Gateway.
func (g *Gemini) CheckFalsifiability(ctx context.Context, hypothesis string) (Falsifiability, error) {
	reply, err := g.generate(ctx, call{op: "falsifiability", model: g.cfg.Model, parts: textParts(falsifiabilityPrompt(hypothesis)), shape: falsifiabilityShape})
	if err != nil {
		return Falsifiability{}, err
	}
	var verdict Falsifiability
	if err := falsifiabilityShape.decode(reply, &verdict); err != nil {
		return Falsifiability{}, err
	}
	return verdict, nil
}

func (g *Gemini) blocks(s *shape, op, text string) (canvas.BlockTexts, error) {
	bt, dropped, err := decodeBlocks(s, text)
	if err != nil {
		return nil, err
	}
	if len(dropped) > 0 {
		g.log.Info("ignored unknown blocks in reply", "op", op, "blocks", dropped)
	}
	return bt, nil
}

// boundFindings trims blank findings and keeps at most MaxFindings.
func boundFindings(findings []string) []string {
	out := make([]string, 0, MaxFindings)
	for _, f := range findings {
		if strings.TrimSpace(f) == "" {
			continue
		}
		out = append(out, strings.TrimSpace(f))
		if len(out) == MaxFindings {
			break
		}
	}
	return out
}
