package chat

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"
	"time"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, image.NewGray(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestAskFileCheck(t *testing.T) {
	accept := []string{"image/jpeg", "image/png", "image/jpg"}
	ask := NewAskFile("upload", accept, 1024, time.Minute)
	now := time.Now()
	data := pngBytes(t)

	tests := []struct {
		name string
		file File
		now  time.Time
		want error
	}{
		{"png", File{Name: "a.png", Type: "image/png", Data: data}, now, nil},
		{"no declared type", File{Name: "a.png", Data: data}, now, nil},
		{"declared with params", File{Name: "a.png", Type: "image/png; q=1", Data: data}, now, nil},
		{"declared gif", File{Name: "a.gif", Type: "image/gif", Data: data}, now, ErrTypeNotAllowed},
		{"lying about type", File{Name: "a.png", Type: "image/png", Data: []byte("%PDF-1.7 hello")}, now, ErrTypeNotAllowed},
		{"too large", File{Name: "a.png", Type: "image/png", Data: append(data, make([]byte, 1024)...)}, now, ErrTooLarge},
		{"empty", File{Name: "a.png", Type: "image/png"}, now, ErrEmptyFile},
		{"expired", File{Name: "a.png", Type: "image/png", Data: data}, now.Add(2 * time.Minute), ErrAskExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ask.Check(tt.file, tt.now)
			if tt.want == nil && err != nil {
				t.Errorf("Unexpected error %s", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAskFileNil(t *testing.T) {
	var ask *AskFile
	if err := ask.Check(File{Data: []byte{1}}, time.Now()); !errors.Is(err, ErrNoAsk) {
		t.Errorf("Expected ErrNoAsk, got %v", err)
	}
}
