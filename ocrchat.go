package ocrchat

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/chriskillpack/ocrchat/extractor"
	"github.com/chriskillpack/ocrchat/internal/llama"
	"github.com/chriskillpack/ocrchat/internal/openai"
)

const (
	BackendGroq   = "groq"
	BackendOpenAI = "openai"
	BackendLlama  = "llama"
)

var ErrMissingAPIKey = errors.New("missing API key")

type InitOptions struct {
	Backend string

	// Hosted backends
	APIKey    string
	BaseURL   string // overrides the backend's default endpoint
	Model     string
	Prompt    string
	RateLimit int // requests per minute, 0 disables

	// Self-hosted llama.cpp backend
	LlamaServer string
	LlamaSeed   int

	HttpClient *http.Client // if nil uses http.DefaultClient
}

type OCRChat struct {
	extractor.Extractor
}

// Init selects and configures the extraction backend. Hosted backends fail
// without a credential, there is no point starting a chat that can't
// extract anything.
func Init(oio InitOptions) (*OCRChat, error) {
	oc := &OCRChat{}

	httpClient := oio.HttpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	switch oio.Backend {
	case BackendGroq, BackendOpenAI:
		if oio.APIKey == "" {
			return nil, fmt.Errorf("%w for %s backend", ErrMissingAPIKey, oio.Backend)
		}
		if oio.LlamaServer != "" {
			return nil, fmt.Errorf("multiple backends selected, only one allowed")
		}
		baseURL := oio.BaseURL
		if baseURL == "" && oio.Backend == BackendGroq {
			baseURL = openai.GroqBaseURL
		}
		oc.Extractor = openai.Init(openai.Options{
			Name:       oio.Backend,
			APIKey:     oio.APIKey,
			BaseURL:    baseURL,
			Model:      oio.Model,
			Prompt:     oio.Prompt,
			RateLimit:  oio.RateLimit,
			HTTPClient: httpClient,
		})
	case BackendLlama:
		if oio.LlamaServer == "" {
			return nil, fmt.Errorf("llama backend needs a server address")
		}
		oc.Extractor = llama.Init(oio.LlamaServer, oio.LlamaSeed, oio.Prompt, httpClient)
	case "":
		return nil, fmt.Errorf("no backend selected")
	default:
		return nil, fmt.Errorf("unknown backend %q", oio.Backend)
	}

	return oc, nil
}
