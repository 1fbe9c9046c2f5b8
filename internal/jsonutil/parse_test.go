package jsonutil

import (
	"errors"
	"testing"
)

func TestStripMarkdownFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"No fences", `{"a":1}`, `{"a":1}`},
		{"Json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"Bare fence", "```\n[1,2]\n```", `[1,2]`},
		{"Too short", "```{}```", "```{}```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripMarkdownFences(tt.in); got != tt.want {
				t.Errorf("StripMarkdownFences() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	got, err := ExtractJSON(`Here you go: {"rating": "S", "reason": "ok"} hope that helps`)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if got != `{"rating": "S", "reason": "ok"}` {
		t.Errorf("ExtractJSON() = %q", got)
	}

	if _, err := ExtractJSON("no json here"); !errors.Is(err, ErrNoJSON) {
		t.Errorf("ExtractJSON() error = %v, want ErrNoJSON", err)
	}

	if _, err := ExtractJSON(`{"unterminated": `); err == nil {
		t.Error("expected error for unterminated object")
	}

	got, err = ExtractJSON(`{"reason": "a } in text", "tags": ["x]"]} and {"second": 1}`)
	if err != nil {
		t.Fatalf("ExtractJSON() error = %v", err)
	}
	if got != `{"reason": "a } in text", "tags": ["x]"]}` {
		t.Errorf("ExtractJSON() = %q, want only the first value", got)
	}

	got, err = ExtractJSON(`["a", {"b": "\"}"}]`)
	if err != nil || got != `["a", {"b": "\"}"}]` {
		t.Errorf("ExtractJSON() = %q, %v; escaped quotes must stay inside the string", got, err)
	}
}

func TestParseJSON(t *testing.T) {
	type verdict struct {
		Rating string `json:"rating"`
		Reason string `json:"reason"`
	}

	v, err := ParseJSON[verdict]("```json\n{\"rating\":\"A\",\"reason\":\"Good\"}\n```")
	if err != nil {
		t.Fatalf("ParseJSON() error = %v", err)
	}
	if v.Rating != "A" || v.Reason != "Good" {
		t.Errorf("ParseJSON() = %+v", v)
	}

	if _, err := ParseJSON[verdict]("{not json}"); err == nil {
		t.Error("expected error for invalid JSON")
	}

	if _, err := ParseJSON[verdict](""); !errors.Is(err, ErrNoJSON) {
		t.Errorf("ParseJSON(\"\") error = %v, want ErrNoJSON", err)
	}
}
