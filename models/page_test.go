package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		strict  bool
		want    Mode
		wantErr bool
	}{
		{in: "raw", want: ModeRaw},
		{in: " RAW ", want: ModeRaw},
		{in: "beautify", want: ModeBeautify},
		{in: "", want: ModeBeautify},
		{in: "", strict: true, want: ModeBeautify},
		{in: "beautfy", want: ModeBeautify},
		{in: "beautfy", strict: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q strict=%v", tt.in, tt.strict), func(t *testing.T) {
			t.Parallel()

			got, err := ParseMode(tt.in, tt.strict)
			if tt.wantErr {
				if CodeOf(err) != ErrCodeInvalidInput {
					t.Fatalf("expected INVALID_INPUT, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPageRecordJSONShapes(t *testing.T) {
	t.Parallel()

	decode := func(t *testing.T, rec PageRecord) map[string]json.RawMessage {
		t.Helper()
		b, err := json.Marshal(rec)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var m map[string]json.RawMessage
		if err := json.Unmarshal(b, &m); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return m
	}

	t.Run("empty sections stay an array", func(t *testing.T) {
		t.Parallel()

		m := decode(t, NewSectionsRecord("https://a.test", nil))
		if len(m) != 2 {
			t.Fatalf("expected url and sections only, got %v", m)
		}
		if string(m["sections"]) != "[]" {
			t.Errorf("sections = %s, want []", m["sections"])
		}
	})

	t.Run("raw markup keeps empty string", func(t *testing.T) {
		t.Parallel()

		m := decode(t, NewRawRecord("https://a.test", ""))
		if len(m) != 2 || string(m["raw_markup"]) != `""` {
			t.Errorf("unexpected raw shape: %v", m)
		}
	})

	t.Run("error record", func(t *testing.T) {
		t.Parallel()

		m := decode(t, NewErrorRecord("https://a.test", errors.New("boom")))
		if len(m) != 2 || string(m["error"]) != `"boom"` {
			t.Errorf("unexpected error shape: %v", m)
		}
	})

	t.Run("section sequences never null", func(t *testing.T) {
		t.Parallel()

		b, err := json.Marshal(Section{Heading: &Heading{Tag: "h1", Text: "Hi"}})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		want := `{"heading":{"tag":"h1","text":"Hi"},"content":[],"images":[],"links":[]}`
		if string(b) != want {
			t.Errorf("got %s, want %s", b, want)
		}
	})
}

func TestSectionEmpty(t *testing.T) {
	t.Parallel()

	if !NewSection().Empty() {
		t.Error("fresh section should be empty")
	}
	s := NewSection()
	s.Images = append(s.Images, "https://a.test/x.png")
	if s.Empty() {
		t.Error("section with an image should not be empty")
	}
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("session: %w", NewScrapeError(ErrCodeBrowserCrash, "gone", nil))
	if !IsFatal(wrapped) {
		t.Error("wrapped browser crash should be fatal")
	}
	if IsFatal(NewScrapeError(ErrCodeNavigation, "404", nil)) {
		t.Error("navigation failure should not be fatal")
	}
	if IsFatal(errors.New("plain")) {
		t.Error("plain errors should not be fatal")
	}
	if CodeOf(errors.New("plain")) != ErrCodeInternal {
		t.Error("plain errors should map to INTERNAL_ERROR")
	}
}
