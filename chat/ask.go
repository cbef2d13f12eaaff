package chat

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrAskExpired     = errors.New("timed out waiting for a file")
	ErrNoAsk          = errors.New("no file was requested")
	ErrTooLarge       = errors.New("file is too large")
	ErrTypeNotAllowed = errors.New("file type is not allowed")
	ErrEmptyFile      = errors.New("file is empty")
)

// File is a file supplied by the user in answer to an AskFile.
type File struct {
	Name string
	Type string // content type declared by the client
	Data []byte
}

// SniffedType returns the content type detected from the file's bytes.
func (f File) SniffedType() string {
	return mimetype.Detect(f.Data).String()
}

// AskFile is an outstanding request for the user to upload a file.
type AskFile struct {
	Content  string
	Accept   []string
	MaxSize  int64
	Deadline time.Time
}

// NewAskFile returns a request accepting the given content types, that
// expires timeout from now.
func NewAskFile(content string, accept []string, maxSize int64, timeout time.Duration) *AskFile {
	return &AskFile{
		Content:  content,
		Accept:   accept,
		MaxSize:  maxSize,
		Deadline: time.Now().Add(timeout),
	}
}

// Check validates f against the request. Both the declared content type and
// the type sniffed from the file's bytes must be acceptable.
func (a *AskFile) Check(f File, now time.Time) error {
	if a == nil {
		return ErrNoAsk
	}
	if now.After(a.Deadline) {
		return ErrAskExpired
	}
	if len(f.Data) == 0 {
		return ErrEmptyFile
	}
	if int64(len(f.Data)) > a.MaxSize {
		return fmt.Errorf("%w: %d bytes, maximum is %d", ErrTooLarge, len(f.Data), a.MaxSize)
	}

	declared := f.Type
	if declared != "" && !a.accepts(declared) {
		return fmt.Errorf("%w: %s", ErrTypeNotAllowed, declared)
	}
	if sniffed := f.SniffedType(); !a.accepts(sniffed) {
		return fmt.Errorf("%w: %s", ErrTypeNotAllowed, sniffed)
	}

	return nil
}

func (a *AskFile) accepts(contentType string) bool {
	// Drop parameters, "image/png; foo=bar" is image/png
	mt, _, _ := strings.Cut(contentType, ";")
	return slices.Contains(a.Accept, strings.ToLower(strings.TrimSpace(mt)))
}
