package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chriskillpack/ocrchat"
	"github.com/chriskillpack/ocrchat/chat"
)

func TestHistoryCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := ocrchat.NewDB(t.Context(), path)
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	err = db.RecordExtraction(t.Context(), &ocrchat.Extraction{
		SessionId:  "cli",
		FileName:   "receipt.png",
		FileSize:   2048,
		Width:      320,
		Height:     200,
		Backend:    "groq",
		Model:      "llama-3.2-90b-vision-preview",
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		ResultLen:  17,
	})
	db.Close()
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	mainCMD.SetOut(&out)
	mainCMD.SetArgs([]string{"history", "--history", path})
	defer mainCMD.SetArgs(nil)
	if err := mainCMD.ExecuteContext(t.Context()); err != nil {
		t.Fatalf("Unexpected error %s", err)
	}

	for _, want := range []string{"receipt.png", "320x200 2048B", "17 chars", "2s", "1 extractions, 0 failed"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected output to contain %q, got\n%s", want, out.String())
		}
	}
}

func TestConsoleAction(t *testing.T) {
	s := chat.NewStore().Create()
	ocrchat.Render(s, ocrchat.Outcome{OfferActions: true})

	c := &console{out: &bytes.Buffer{}}
	cases := []struct {
		line     string
		expected string
		ok       bool
	}{
		{"1", ocrchat.ActionUpload, true},
		{"2", ocrchat.ActionExtract, true},
		{"extract", ocrchat.ActionExtract, true},
		{"UPLOAD", ocrchat.ActionUpload, true},
		{"quit", "quit", true},
		{"3", "", false},
		{"dance", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		actual, ok := c.action(s, tc.line)
		if tc.expected != actual || tc.ok != ok {
			t.Errorf("%q: expected (%q, %t), got (%q, %t)", tc.line, tc.expected, tc.ok, actual, ok)
		}
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Scan.PNG")
	if err := os.WriteFile(path, []byte("not really a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := readFile(path)
	if err != nil {
		t.Fatalf("Unexpected error %s", err)
	}
	if expected, actual := "Scan.PNG", f.Name; expected != actual {
		t.Errorf("Expected name %q, got %q", expected, actual)
	}
	if expected, actual := "image/png", f.Type; expected != actual {
		t.Errorf("Expected type %q, got %q", expected, actual)
	}

	if _, err := readFile(""); err != errNoFile {
		t.Errorf("Expected errNoFile, got %v", err)
	}
}
