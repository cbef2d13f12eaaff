package llama

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chriskillpack/ocrchat/extractor"
)

func TestExtractText(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/completion" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Bad request body %s", err)
		}
		w.Write([]byte(`{"content":" ## Menu\n\n- soup","stop":true}` + "\n\n"))
	}))
	defer srv.Close()

	l := Init(srv.URL+"/", 42, "", srv.Client())
	text, err := l.ExtractText(t.Context(), extractor.Image{JPEG: []byte{0xff, 0xd8}})
	if err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if expected, actual := "## Menu\n\n- soup", text; expected != actual {
		t.Errorf("Expected %q, got %q", expected, actual)
	}

	prompt, _ := body["prompt"].(string)
	if !strings.Contains(prompt, "[img-10]"+extractor.DefaultPrompt) {
		t.Errorf("Prompt missing instruction: %q", prompt)
	}
	if expected, actual := float64(42), body["seed"]; expected != actual {
		t.Errorf("Expected seed %v, got %v", expected, actual)
	}
	images, _ := body["image_data"].([]any)
	if len(images) != 1 {
		t.Fatalf("Expected one image, got %v", body["image_data"])
	}
	if expected, actual := "/9g=", images[0].(map[string]any)["data"]; expected != actual {
		t.Errorf("Expected image data %q, got %q", expected, actual)
	}
}

func TestExtractTextServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "loading model", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	l := Init(srv.URL, 0, "", srv.Client())
	if _, err := l.ExtractText(t.Context(), extractor.Image{}); err == nil {
		t.Error("Expected an error")
	}
	if l.IsHealthy(t.Context()) {
		t.Error("Expected server to be unhealthy")
	}
}
