package extractor

import (
	"context"
	"encoding/base64"
)

// DefaultPrompt is the instruction sent alongside every image.
const DefaultPrompt = "Analyze the text in the provided image. Extract all readable content and present it in a structured Markdown format that is clear, concise, and well-organized."

// Extractor extracts the text in an image using a specific vision LLM.
type Extractor interface {
	// Name returns the name of the backend, e.g. "groq" or "llama"
	Name() string

	// Model returns the model the backend sends requests to.
	Model() string

	// ExtractText returns the readable content of img as markdown. The
	// provided ctx is used as a parent context for the request to the LLM
	// server. Exactly one request is made, there are no retries.
	ExtractText(ctx context.Context, img Image) (string, error)

	// IsHealthy returns whether the LLM server is reachable and accepts our
	// credentials.
	IsHealthy(ctx context.Context) bool
}

// Image is a normalized image, always an opaque three-channel JPEG.
type Image struct {
	JPEG []byte

	Width, Height int
}

// Base64 returns the JPEG bytes in standard base64 encoding.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.JPEG)
}

// DataURI returns the image as a data URI suitable for embedding in a
// multimodal chat request.
func (i Image) DataURI() string {
	return "data:image/jpeg;base64," + i.Base64()
}
