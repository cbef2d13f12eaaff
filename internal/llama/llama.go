package llama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"strings"

	"github.com/chriskillpack/ocrchat/extractor"
)

const (
	imagePreamble = `A chat between a curious human and an artificial intelligence assistant. The assistant gives helpful, detailed, and polite answers to the human's questions.
USER:`
	imageSuffix = `
ASSISTANT:`

	imageID = 10
)

type jsonmap map[string]any

// Matches the sampling used against hosted backends where llama.cpp has an
// equivalent knob.
var defaultparams = jsonmap{
	"n_predict":      1000,
	"n_probs":        0,
	"temperature":    0.7,
	"stop":           []string{"</s>", "USER:"},
	"repeat_last_n":  256,
	"repeat_penalty": 1.18,
	"top_k":          40,
	"top_p":          0.5,
	"slot_id":        -1,
	"cache_prompt":   false,
}

type llama struct {
	srvAddr string
	seed    int
	prompt  string

	client *http.Client
}

var _ extractor.Extractor = &llama{}

// Init returns an extractor backed by a llama.cpp server running a
// multimodal (llava style) model at srvAddr.
func Init(srvAddr string, seed int, prompt string, httpClient *http.Client) *llama {
	if prompt == "" {
		prompt = extractor.DefaultPrompt
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &llama{
		srvAddr: strings.TrimSuffix(srvAddr, "/"),
		seed:    seed,
		prompt:  prompt,
		client:  httpClient,
	}
}

func (l *llama) Name() string { return "llama" }

// Model is whatever the server was started with, llama.cpp doesn't expose
// a model name on /completion.
func (l *llama) Model() string { return "llama.cpp" }

func (l *llama) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.srvAddr+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (l *llama) ExtractText(ctx context.Context, img extractor.Image) (string, error) {
	prompt := fmt.Sprintf("%s[img-%d]%s%s", imagePreamble, imageID, l.prompt, imageSuffix)
	return l.sendRequest(ctx, prompt, jsonmap{
		"image_data": []jsonmap{
			{
				"data": img.Base64(), "id": imageID,
			},
		},
	})
}

func (l *llama) sendRequest(ctx context.Context, prompt string, keys jsonmap) (string, error) {
	data := maps.Clone(defaultparams)
	maps.Copy(data, keys)
	data["prompt"] = prompt
	data["stream"] = false
	data["seed"] = l.seed

	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(&data); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.srvAddr+"/completion", buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llama server returned %s", resp.Status)
	}

	content := new(bytes.Buffer)
	respbody := struct {
		Content string
		Stop    bool
	}{}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for !respbody.Stop {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", fmt.Errorf("malformed response, missing stop")
		}
		line := sc.Bytes()
		// The server terminates the JSON body with an empty line
		if len(line) == 0 {
			continue
		}
		if err := json.Unmarshal(line, &respbody); err != nil {
			return "", err
		}
		content.WriteString(respbody.Content)
	}

	return strings.TrimLeft(content.String(), " "), nil
}
