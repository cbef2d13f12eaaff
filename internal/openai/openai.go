package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chriskillpack/ocrchat/extractor"

	oagc "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// GroqBaseURL is Groq's OpenAI compatible endpoint, the default backend.
	GroqBaseURL = "https://api.groq.com/openai/v1/"

	DefaultModel = "llama-3.2-90b-vision-preview"

	// Sampling parameters are fixed for every extraction request
	maxTokens   = 1000
	temperature = 0.7
)

type Options struct {
	Name    string // reported by Name(), e.g. "groq"
	APIKey  string
	BaseURL string // empty uses the client library's default (api.openai.com)
	Model   string
	Prompt  string

	// RateLimit is the number of requests allowed per minute, 0 disables
	// rate limiting.
	RateLimit int

	HTTPClient *http.Client // if nil uses http.DefaultClient
}

type openai struct {
	oac    *oagc.Client
	name   string
	model  string
	prompt string

	rl *rateLimiter // For requests to the chat completion API
}

var _ extractor.Extractor = &openai{}

func Init(opts Options) *openai {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0), // a failed extraction is reported, never retried
	}
	if opts.BaseURL != "" {
		baseURL := opts.BaseURL
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}

	o := &openai{
		oac:    oagc.NewClient(reqOpts...),
		name:   opts.Name,
		model:  opts.Model,
		prompt: opts.Prompt,
	}
	if o.name == "" {
		o.name = "openai"
	}
	if o.model == "" {
		o.model = DefaultModel
	}
	if o.prompt == "" {
		o.prompt = extractor.DefaultPrompt
	}
	if opts.RateLimit > 0 {
		o.rl = newRateLimiter(opts.RateLimit, time.Minute)
	}

	return o
}

func (o *openai) Name() string { return o.name }

func (o *openai) Model() string { return o.model }

func (o *openai) IsHealthy(ctx context.Context) bool {
	_, err := o.oac.Models.Get(ctx, o.model)
	return err == nil
}

func (o *openai) ExtractText(ctx context.Context, img extractor.Image) (string, error) {
	if o.rl != nil {
		if err := o.rl.Acquire(ctx); err != nil {
			return "", err
		}
	}

	params := oagc.ChatCompletionNewParams{
		Messages: oagc.F([]oagc.ChatCompletionMessageParamUnion{
			oagc.UserMessageParts(
				oagc.TextPart(o.prompt),
				oagc.ImagePart(img.DataURI()),
			),
		}),
		Model:       oagc.F(oagc.ChatModel(o.model)),
		MaxTokens:   oagc.Int(maxTokens),
		Temperature: oagc.Float(temperature),
	}
	resp, err := o.oac.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("malformed response, no choices returned by %s", o.model)
	}

	return resp.Choices[0].Message.Content, nil
}
