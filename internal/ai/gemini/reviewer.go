package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	_ "embed"

	"go.uber.org/zap"

	"github.com/jobscout-dev/jobscout/internal/ai"
	"github.com/jobscout-dev/jobscout/internal/source"
	"github.com/jobscout-dev/jobscout/internal/utils"
)

//go:embed reviewer_prompt.md
var reviewerPromptTemplate string

// Reviewer implements ai.Reviewer on top of the Gemini generator.
type Reviewer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewReviewer(generator contentGenerator, maxLogLength int, logger *zap.Logger) *Reviewer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Reviewer{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (r *Reviewer) Review(ctx context.Context, draft *ai.Draft, posting *source.Posting) (*ai.Verdict, error) {
	if draft == nil {
		return nil, fmt.Errorf("draft is required")
	}
	if posting == nil {
		return nil, fmt.Errorf("posting is required")
	}

	postingJSON, err := json.MarshalIndent(posting, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal posting payload: %w", err)
	}

	draftJSON, err := json.MarshalIndent(map[string]any{
		"edits":        draft.Edits,
		"cover_letter": draft.CoverLetter,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal draft payload: %w", err)
	}

	prompt := strings.NewReplacer(
		"{{POSTING_JSON}}", string(postingJSON),
		"{{DRAFT_JSON}}", string(draftJSON),
	).Replace(reviewerPromptTemplate)

	raw, err := r.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("gemini review response",
		zap.String("posting_id", posting.ID),
		zap.Int("attempt", draft.Attempt),
		zap.String("response_preview", utils.TruncateForLog(raw, r.maxLogLen)),
	)

	verdict, err := parseVerdictResponse(raw)
	if err != nil {
		return nil, err
	}

	verdict.Raw = raw
	return verdict, nil
}

func parseVerdictResponse(raw string) (*ai.Verdict, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse review response: %w", err)
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		score = 0
	}

	return &ai.Verdict{
		Approved: coerceBool(data["approved"]),
		Score:    score,
		Feedback: coerceString(data["feedback"]),
	}, nil
}
