package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/infrastructure/resilience"
)

const DefaultMaxTextChars = 5000

type Options struct {
	TextModel    string
	VisionModel  string
	MaxTextChars int
	Timeout      time.Duration
	Executor     *resilience.Executor
}

type Client struct {
	baseURL      string
	textModel    string
	visionModel  string
	maxTextChars int
	httpClient   *http.Client
	executor     *resilience.Executor
}

func New(baseURL string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	maxChars := opts.MaxTextChars
	if maxChars <= 0 {
		maxChars = DefaultMaxTextChars
	}
	vision := opts.VisionModel
	if vision == "" {
		vision = opts.TextModel
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		textModel:    opts.TextModel,
		visionModel:  vision,
		maxTextChars: maxChars,
		httpClient:   &http.Client{Timeout: timeout},
		executor:     opts.Executor,
	}
}

// Analyzer sends normalized document payloads to the generate endpoint in
// JSON mode and returns the raw model output.
type Analyzer struct {
	client *Client
}

func NewAnalyzer(client *Client) *Analyzer {
	return &Analyzer{client: client}
}

func (a *Analyzer) Analyze(ctx context.Context, payload domain.ContentPayload, hint domain.TaskHint) (string, error) {
	req, err := a.client.buildRequest(payload, hint)
	if err != nil {
		return "", domain.WrapError(domain.ErrAnalysis, "build analysis request", err)
	}

	var out string
	call := func(ctx context.Context) error {
		text, err := a.client.generate(ctx, req)
		if err != nil {
			return err
		}
		out = text
		return nil
	}

	operation := "ollama.generate." + string(payload.Kind)
	if a.client.executor != nil {
		err = a.client.executor.Execute(ctx, operation, call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapAnalysisError("ollama generate", err)
	}
	if out == "" {
		return "", domain.WrapError(domain.ErrAnalysis, "ollama generate", errors.New("empty model output"))
	}
	return out, nil
}

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images [][]byte `json:"images,omitempty"`
	Stream bool     `json:"stream"`
	Format string   `json:"format"`
}

func (c *Client) buildRequest(payload domain.ContentPayload, hint domain.TaskHint) (generateRequest, error) {
	switch payload.Kind {
	case domain.PayloadText:
		if strings.TrimSpace(payload.Text) == "" {
			return generateRequest{}, errors.New("empty text payload")
		}
		return generateRequest{
			Model:  c.textModel,
			Prompt: buildTextPrompt(payload.Text, c.maxTextChars),
			Format: "json",
		}, nil
	case domain.PayloadImages:
		if len(payload.Images) == 0 {
			return generateRequest{}, errors.New("empty image payload")
		}
		images := make([][]byte, 0, len(payload.Images))
		for _, img := range payload.Images {
			images = append(images, img.Data)
		}
		return generateRequest{
			Model:  c.visionModel,
			Prompt: buildImagePrompt(hint),
			Images: images,
			Format: "json",
		}, nil
	default:
		return generateRequest{}, fmt.Errorf("unsupported payload kind %q", payload.Kind)
	}
}

func (c *Client) generate(ctx context.Context, req generateRequest) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", req, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
