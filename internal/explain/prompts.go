package explain

import (
	"fmt"
	"strings"

	"github.com/far-prep/backend/internal/models"
)

func SystemPrompt() string {
	return `You are an expert instructor for the Federal Acquisition Regulation (FAR) certification exam.

You write short explanations for multiple-choice practice questions. Each explanation has three parts:

1. WHY CORRECT: one or two sentences that start with "Why this is correct:" and explain the reasoning using the word "because". Cite the governing FAR part or subpart and include a link to https://www.acquisition.gov/.
2. KEY TAKEAWAY: one sentence that starts with "Key takeaway:" and states the rule a student should remember.
3. COMMON MISTAKE: one sentence that starts with "Common mistake:" and names the most tempting wrong answer pattern.

Never refer to choices by letter; the choice order is shuffled for every student.

Respond with ONLY a JSON object, no prose:
{"why_correct": "...", "key_takeaway": "...", "common_mistake": "..."}`
}

// BuildUserPrompt describes one question in original choice order.
func BuildUserPrompt(q models.PresentedQuestion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\nTopic: %s\n", q.Session, q.Topic)
	if len(q.FarRefs) > 0 {
		fmt.Fprintf(&b, "FAR references: %s\n", strings.Join(q.FarRefs, ", "))
	}
	if len(q.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(q.Tags, ", "))
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n\nChoices:\n", q.Prompt)
	for _, c := range q.OriginalChoices {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	fmt.Fprintf(&b, "\nCorrect answer: %s\n", q.OriginalChoices[q.OriginalCorrectIndex])
	if strings.TrimSpace(q.Explanation) != "" {
		fmt.Fprintf(&b, "\nExisting explanation (too thin, improve on it): %s\n", q.Explanation)
	}
	return b.String()
}
