package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	_ "embed"

	"go.uber.org/zap"

	"github.com/jobscout-dev/jobscout/internal/ai"
	"github.com/jobscout-dev/jobscout/internal/profile"
	"github.com/jobscout-dev/jobscout/internal/source"
	"github.com/jobscout-dev/jobscout/internal/utils"
)

//go:embed writer_prompt.md
var writerPromptTemplate string

// Writer implements ai.Writer on top of the Gemini generator.
type Writer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewWriter(generator contentGenerator, maxLogLength int, logger *zap.Logger) *Writer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Writer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (w *Writer) Generate(ctx context.Context, posting *source.Posting, prof *profile.Profile, feedback string, lastChance bool) (*ai.Draft, error) {
	if posting == nil {
		return nil, fmt.Errorf("posting is required")
	}
	if prof == nil {
		return nil, fmt.Errorf("profile is required")
	}

	resumeJSON, err := prof.ResumeJSON()
	if err != nil {
		return nil, err
	}

	postingJSON, err := json.MarshalIndent(posting, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal posting payload: %w", err)
	}

	samples := strings.Join(prof.WritingSamples, "\n---\n")
	if samples == "" {
		samples = "(no samples provided)"
	}

	prompt := strings.NewReplacer(
		"{{RESUME_JSON}}", resumeJSON,
		"{{CRITERIA}}", prof.Criteria,
		"{{SAMPLES}}", samples,
		"{{POSTING_JSON}}", string(postingJSON),
		"{{RETRY_CONTEXT}}", retryContext(feedback, lastChance),
	).Replace(writerPromptTemplate)

	w.logger.Debug("gemini generate request",
		zap.String("posting_id", posting.ID),
		zap.Bool("last_chance", lastChance),
		zap.String("feedback", utils.TruncateForLog(feedback, w.maxLogLen)),
	)

	raw, err := w.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	w.logger.Debug("gemini generate response",
		zap.String("posting_id", posting.ID),
		zap.String("response_preview", utils.TruncateForLog(raw, w.maxLogLen)),
	)

	draft, err := parseDraftResponse(raw)
	if err != nil {
		return nil, err
	}

	draft.PostingID = posting.ID
	draft.Raw = raw
	return draft, nil
}

// retryContext renders the feedback and last-attempt blocks injected between
// the posting and the task description.
func retryContext(feedback string, lastChance bool) string {
	var b strings.Builder
	if strings.TrimSpace(feedback) != "" {
		b.WriteString("\n**Feedback from the previous attempt:**\n")
		b.WriteString("The previous version was rejected for the following reason: ")
		b.WriteString(strings.TrimSpace(feedback))
		b.WriteString(". Address this feedback carefully in your new draft.\n")
	}
	if lastChance {
		b.WriteString("\n**This is your final attempt.** Produce the highest quality content possible; it will be delivered without further review.\n")
	}
	return b.String()
}

func parseDraftResponse(raw string) (*ai.Draft, error) {
	cleaned := extractJSON(raw)

	var data struct {
		Edits       []ai.EditSuggestion `json:"edits"`
		CoverLetter string              `json:"cover_letter"`
	}
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse draft response: %w", err)
	}

	if strings.TrimSpace(data.CoverLetter) == "" {
		return nil, fmt.Errorf("draft response has no cover letter")
	}

	return &ai.Draft{
		Edits:       data.Edits,
		CoverLetter: strings.TrimSpace(data.CoverLetter),
	}, nil
}
