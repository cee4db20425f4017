// Package explain turns stored answer explanations into the structured
// why/takeaway/mistake form shown after an answer, optionally asking an LLM
// to write one when the stored text is too thin.
package explain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/far-prep/backend/internal/models"
)

const (
	minExplanationLength = 80
	acquisitionGov       = "https://www.acquisition.gov/"
	defaultTopic         = "this topic"
)

// An explanation must reason, not just assert.
var requiredTerms = []string{"because", "so that", "therefore", "this means"}

var takeawayMarker = regexp.MustCompile(`(?i)key\s+takeaway:`)

func normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

func hasRequiredTerm(explanation string) bool {
	lower := strings.ToLower(explanation)
	for _, term := range requiredTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// NeedsEnhancement reports whether a stored explanation is too weak to show
// as is: empty, a restatement of the answer, short, missing a link to
// acquisition.gov, or missing any reasoning term.
func NeedsEnhancement(explanation, correctAnswer string) bool {
	if strings.TrimSpace(explanation) == "" {
		return true
	}
	if normalize(explanation) == normalize(correctAnswer) {
		return true
	}
	if len([]rune(explanation)) < minExplanationLength {
		return true
	}
	if !strings.Contains(explanation, "acquisition.gov") {
		return true
	}
	return !hasRequiredTerm(explanation)
}

func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes)-1; i++ {
		if strings.ContainsRune(".!?", runes[i]) && unicode.IsSpace(runes[i+1]) {
			if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func topicOf(p models.PresentedQuestion) string {
	if p.Topic == "" {
		return defaultTopic
	}
	return p.Topic
}

// encodeComponent escapes like a browser's encodeURIComponent for the
// characters FAR references contain.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Template builds the deterministic explanation used when the stored one
// needs enhancement and no writer is available.
func Template(p models.PresentedQuestion) models.EnhancedExplanation {
	topic := topicOf(p)

	session := ""
	if p.Session != "" {
		session = fmt.Sprintf(" (%s)", p.Session)
	}
	tags := ""
	if len(p.Tags) > 0 {
		tags = fmt.Sprintf(" It connects to %s.", strings.Join(p.Tags, ", "))
	}
	refs := ""
	link := fmt.Sprintf("See %s for FAR guidance.", acquisitionGov)
	if len(p.FarRefs) > 0 {
		joined := strings.Join(p.FarRefs, ", ")
		refs = fmt.Sprintf(" Reference: %s.", joined)
		link = fmt.Sprintf("See %s?search=%s for the cited FAR reference.", acquisitionGov, encodeComponent(joined))
	}

	return models.EnhancedExplanation{
		WhyCorrect: fmt.Sprintf("Why this is correct: Because the question focuses on %s%s, "+
			"the correct choice is the one that directly aligns with that focus. %s", topic, session, link),
		KeyTakeaway: fmt.Sprintf("Key takeaway: Anchor your choice to the core %s principle "+
			"and select the option that best matches it.%s%s", topic, tags, refs),
		CommonMistake: fmt.Sprintf("Common mistake: Picking an option that sounds plausible "+
			"but doesn't address the %s focus in the prompt.", topic),
		WasEnhanced: true,
	}
}

// Build structures the question's stored explanation, falling back to
// Template when it needs enhancement.
func Build(p models.PresentedQuestion) models.EnhancedExplanation {
	explanation := p.Explanation
	if NeedsEnhancement(explanation, p.PresentedChoices[p.PresentedCorrectIndex]) {
		return Template(p)
	}

	if parts := takeawayMarker.Split(explanation, -1); len(parts) > 1 {
		return models.EnhancedExplanation{
			WhyCorrect:  strings.TrimSpace(parts[0]),
			KeyTakeaway: strings.TrimSpace("Key takeaway:" + strings.Join(parts[1:], "key takeaway:")),
		}
	}

	sentences := splitSentences(explanation)
	out := models.EnhancedExplanation{
		WhyCorrect:  explanation,
		KeyTakeaway: fmt.Sprintf("Key takeaway: Focus on the core %s principle described in the prompt.", topicOf(p)),
	}
	if len(sentences) > 0 {
		out.WhyCorrect = sentences[0]
	}
	if len(sentences) > 1 {
		out.KeyTakeaway = "Key takeaway: " + sentences[1]
	}
	return out
}

// ContrastStatements gives one line per wrong presented choice, lettered by
// on-screen position.
func ContrastStatements(p models.PresentedQuestion) []string {
	topic := topicOf(p)
	session := ""
	if p.Session != "" {
		session = " in " + string(p.Session)
	}

	out := make([]string, 0, models.ChoiceCount-1)
	for i := range p.PresentedChoices {
		if i == p.PresentedCorrectIndex {
			continue
		}
		out = append(out, fmt.Sprintf("Choice %c doesn't align with the prompt's focus on %s%s.", 'A'+i, topic, session))
	}
	return out
}
