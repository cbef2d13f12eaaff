package ocrchat

import (
	"database/sql"
	"fmt"
	"testing"
	"time"
)

func TestRecordExtraction(t *testing.T) {
	db, err := NewDB(t.Context(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	t.Run("empty", func(t *testing.T) {
		exs, err := db.RecentExtractions(t.Context(), 10)
		if err != nil {
			t.Errorf("Unexpected error %s", err)
		}
		if expected, actual := 0, len(exs); expected != actual {
			t.Errorf("Expected %d extractions, got %d", expected, actual)
		}
	})

	t.Run("record and list", func(t *testing.T) {
		start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
		for i := range 5 {
			ex := &Extraction{
				SessionId:  "session",
				FileName:   fmt.Sprintf("scan%d.png", i),
				FileSize:   1000 + i,
				Width:      640,
				Height:     480,
				Backend:    "groq",
				Model:      "llama-3.2-90b-vision-preview",
				StartedAt:  start.Add(time.Duration(i) * time.Minute),
				FinishedAt: start.Add(time.Duration(i)*time.Minute + 3*time.Second),
				ResultLen:  42,
			}
			if i == 4 {
				ex.Err = sql.NullString{String: "over capacity", Valid: true}
				ex.ResultLen = 0
			}
			if err := db.RecordExtraction(t.Context(), ex); err != nil {
				t.Fatalf("Unexpected error %s", err)
			}
			if ex.Id == 0 {
				t.Errorf("Expected id to be set")
			}
		}

		exs, err := db.RecentExtractions(t.Context(), 3)
		if err != nil {
			t.Fatalf("Unexpected error %s", err)
		}
		if expected, actual := 3, len(exs); expected != actual {
			t.Fatalf("Expected %d extractions, got %d", expected, actual)
		}
		if expected, actual := "scan4.png", exs[0].FileName; expected != actual {
			t.Errorf("Expected most recent %q first, got %q", expected, actual)
		}
		if !exs[0].Err.Valid || exs[0].Err.String != "over capacity" {
			t.Errorf("Expected error to round trip, got %+v", exs[0].Err)
		}
		if expected, actual := 3*time.Second, exs[1].Duration(); expected != actual {
			t.Errorf("Expected duration %s, got %s", expected, actual)
		}

		total, failed, err := db.CountExtractions(t.Context())
		if err != nil {
			t.Fatalf("Unexpected error %s", err)
		}
		if total != 5 || failed != 1 {
			t.Errorf("Expected 5 total and 1 failed, got %d and %d", total, failed)
		}
	})
}
