package gemini

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestWriterGenerate(t *testing.T) {
	stub := &stubGenerator{response: `{
		"edits": [{"original": "Backend engineer", "proposed": "Senior Go engineer", "rationale": "Match the title"}],
		"cover_letter": "Dear Acme, I build reliable Go services."
	}`}
	writer := NewWriter(stub, 0, zap.NewNop())

	draft, err := writer.Generate(context.Background(), testPosting(), testProfile(), "", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if draft.PostingID != "abc123" {
		t.Fatalf("expected posting id on draft, got %s", draft.PostingID)
	}
	if len(draft.Edits) != 1 || draft.Edits[0].Proposed != "Senior Go engineer" {
		t.Fatalf("unexpected edits: %+v", draft.Edits)
	}
	if draft.CoverLetter != "Dear Acme, I build reliable Go services." {
		t.Fatalf("unexpected cover letter: %q", draft.CoverLetter)
	}

	if !strings.Contains(stub.lastPrompt, "I enjoy building reliable systems.") {
		t.Fatalf("expected writing samples embedded in prompt")
	}
	if strings.Contains(stub.lastPrompt, "previous attempt") {
		t.Fatalf("first attempt must not carry retry context")
	}
}

func TestWriterGenerateCarriesFeedbackAndLastChance(t *testing.T) {
	stub := &stubGenerator{response: `{"edits": [], "cover_letter": "Second try."}`}
	writer := NewWriter(stub, 0, zap.NewNop())

	_, err := writer.Generate(context.Background(), testPosting(), testProfile(), "too generic", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stub.lastPrompt, "too generic") {
		t.Fatalf("expected reviewer feedback embedded in prompt")
	}
	if !strings.Contains(stub.lastPrompt, "final attempt") {
		t.Fatalf("expected last-chance block in prompt")
	}
}

func TestWriterGenerateRejectsEmptyCoverLetter(t *testing.T) {
	writer := NewWriter(&stubGenerator{response: `{"edits": [], "cover_letter": "  "}`}, 0, zap.NewNop())

	if _, err := writer.Generate(context.Background(), testPosting(), testProfile(), "", false); err == nil {
		t.Fatal("expected an error for a draft without a cover letter")
	}
}
