package pipeline

import (
	"fmt"
	"strings"

	"github.com/jobscout-dev/jobscout/internal/ai"
	"github.com/jobscout-dev/jobscout/internal/notify"
	"github.com/jobscout-dev/jobscout/internal/source"
)

// renderSuccess builds the notification for one approved posting: the posting
// itself, the suggested resume edits and the cover letter draft.
func renderSuccess(posting *source.Posting, draft *ai.Draft) *notify.Payload {
	var b strings.Builder

	fmt.Fprintf(&b, "New qualified job found!\n\n")
	fmt.Fprintf(&b, "Title: %s\n", posting.Title)
	fmt.Fprintf(&b, "Company: %s\n", posting.Company)
	if posting.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", posting.Location)
	}
	fmt.Fprintf(&b, "Source: %s\n", posting.Source)
	fmt.Fprintf(&b, "%s\n", posting.URL)

	if len(draft.Edits) > 0 {
		b.WriteString("\nSuggested resume edits:\n")
		for i, edit := range draft.Edits {
			fmt.Fprintf(&b, "%d. %s\n   -> %s\n", i+1, edit.Original, edit.Proposed)
			if edit.Rationale != "" {
				fmt.Fprintf(&b, "   (%s)\n", edit.Rationale)
			}
		}
	}

	b.WriteString("\nCover letter draft:\n")
	b.WriteString(draft.CoverLetter)
	b.WriteString("\n")

	return &notify.Payload{
		Kind:    notify.KindSuccess,
		Subject: fmt.Sprintf("%s at %s", posting.Title, posting.Company),
		Body:    b.String(),
	}
}
