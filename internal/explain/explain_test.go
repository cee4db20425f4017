package explain

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/far-prep/backend/internal/models"
)

const goodExplanation = "Full and open competition is required because FAR Part 6 makes it the default. " +
	"Exceptions must be justified in writing. See https://www.acquisition.gov/far/part-6."

// presented builds an unshuffled view with the correct answer at index 1.
func presented(explanation string) models.PresentedQuestion {
	choices := [models.ChoiceCount]string{"Sole source", "Full and open competition", "Set-aside", "Micro-purchase"}
	return models.PresentedQuestion{
		ID:                    "q-1",
		Prompt:                "What is the default competition standard?",
		PresentedChoices:      choices,
		PresentedCorrectIndex: 1,
		OriginalChoices:       choices,
		OriginalCorrectIndex:  1,
		IndexMap:              [models.ChoiceCount]int{0, 1, 2, 3},
		ReverseMap:            [models.ChoiceCount]int{0, 1, 2, 3},
		Explanation:           explanation,
		Session:               models.Session2,
		Topic:                 "Competition",
		Tags:                  []string{"Sourcing", "Planning"},
		FarRefs:               []string{"FAR 6.101", "FAR 6.302"},
		Difficulty:            1,
	}
}

func TestNeedsEnhancement(t *testing.T) {
	long := strings.Repeat("This covers the rule in detail. ", 4)
	cases := []struct {
		name        string
		explanation string
		want        bool
	}{
		{"empty", "", true},
		{"restates answer", "  full AND open\ncompetition ", true},
		{"too short", "Because FAR 6. acquisition.gov", true},
		{"no acquisition.gov link", long + " because of FAR 6.", true},
		{"no reasoning term", long + " See acquisition.gov.", true},
		{"good", goodExplanation, false},
		{"therefore counts", long + " Therefore see acquisition.gov.", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NeedsEnhancement(tc.explanation, "Full and open competition"))
		})
	}
}

func TestBuild_SplitsOnTakeawayMarker(t *testing.T) {
	text := "The officer must document the decision because FAR 6.303 requires it. " +
		"KEY TAKEAWAY: write the justification before award. See https://www.acquisition.gov/far/6.303."

	got := Build(presented(text))
	assert.False(t, got.WasEnhanced)
	assert.Equal(t, "The officer must document the decision because FAR 6.303 requires it.", got.WhyCorrect)
	assert.Equal(t, "Key takeaway: write the justification before award. See https://www.acquisition.gov/far/6.303.", got.KeyTakeaway)
	assert.Empty(t, got.CommonMistake)
}

func TestBuild_UsesSentences(t *testing.T) {
	got := Build(presented(goodExplanation))
	assert.False(t, got.WasEnhanced)
	assert.Equal(t, "Full and open competition is required because FAR Part 6 makes it the default.", got.WhyCorrect)
	assert.Equal(t, "Key takeaway: Exceptions must be justified in writing.", got.KeyTakeaway)
}

func TestBuild_FallsBackToTemplate(t *testing.T) {
	got := Build(presented("Full and open competition"))
	require.True(t, got.WasEnhanced)

	assert.Equal(t,
		"Why this is correct: Because the question focuses on Competition (Session 2), the correct choice is "+
			"the one that directly aligns with that focus. See https://www.acquisition.gov/?search=FAR%206.101%2C%20FAR%206.302 "+
			"for the cited FAR reference.",
		got.WhyCorrect)
	assert.Equal(t,
		"Key takeaway: Anchor your choice to the core Competition principle and select the option that best matches it. "+
			"It connects to Sourcing, Planning. Reference: FAR 6.101, FAR 6.302.",
		got.KeyTakeaway)
	assert.Equal(t,
		"Common mistake: Picking an option that sounds plausible but doesn't address the Competition focus in the prompt.",
		got.CommonMistake)
}

func TestTemplate_WithoutRefsOrTopic(t *testing.T) {
	p := presented("")
	p.FarRefs = nil
	p.Tags = nil
	p.Topic = ""
	p.Session = ""

	got := Template(p)
	assert.Equal(t,
		"Why this is correct: Because the question focuses on this topic, the correct choice is the one that "+
			"directly aligns with that focus. See https://www.acquisition.gov/ for FAR guidance.",
		got.WhyCorrect)
	assert.Equal(t,
		"Key takeaway: Anchor your choice to the core this topic principle and select the option that best matches it.",
		got.KeyTakeaway)
}

func TestContrastStatements(t *testing.T) {
	p := presented(goodExplanation)
	p.PresentedCorrectIndex = 2

	got := ContrastStatements(p)
	assert.Equal(t, []string{
		"Choice A doesn't align with the prompt's focus on Competition in Session 2.",
		"Choice B doesn't align with the prompt's focus on Competition in Session 2.",
		"Choice D doesn't align with the prompt's focus on Competition in Session 2.",
	}, got)
}

// ── Writer ─────────────────────────────────────────────

type stubClient struct {
	calls   atomic.Int32
	content string
	err     error
}

func (s *stubClient) Generate(ctx context.Context, systemPrompt, userPrompt string) (*LLMResponse, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &LLMResponse{Content: s.content}, nil
}

func TestExplainer_UsesStoredExplanationWhenGood(t *testing.T) {
	stub := &stubClient{err: errors.New("should not be called")}
	e := NewWithClient(stub, "stub", 0)

	got, src := e.Explain(context.Background(), presented(goodExplanation))
	assert.Equal(t, models.ExplanationOriginal, src)
	assert.False(t, got.WasEnhanced)
	assert.Zero(t, stub.calls.Load())
}

func TestExplainer_TemplateOnlyWithoutClient(t *testing.T) {
	e := New(Options{})
	assert.Equal(t, BackendTemplate, e.ModelName())

	got, src := e.Explain(context.Background(), presented(""))
	assert.Equal(t, models.ExplanationTemplate, src)
	assert.Equal(t, Template(presented("")), got)
}

func TestExplainer_FallsBackOnWriterError(t *testing.T) {
	stub := &stubClient{err: errors.New("rate limited")}
	e := NewWithClient(stub, "stub", 0)

	got, src := e.Explain(context.Background(), presented("too thin"))
	assert.Equal(t, models.ExplanationTemplate, src)
	assert.True(t, got.WasEnhanced)
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestExplainer_CachesWrittenExplanations(t *testing.T) {
	stub := &stubClient{content: `{"why_correct": "It is the default because FAR 6.101 says so.", "key_takeaway": "Compete by default."}`}
	e := NewWithClient(stub, "stub", 0)

	first, src := e.Explain(context.Background(), presented("too thin"))
	require.Equal(t, models.ExplanationLLM, src)
	assert.Equal(t, "Why this is correct: It is the default because FAR 6.101 says so.", first.WhyCorrect)
	assert.Equal(t, "Key takeaway: Compete by default.", first.KeyTakeaway)

	second, src := e.Explain(context.Background(), presented("too thin"))
	assert.Equal(t, models.ExplanationLLM, src)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestExplainer_MockBackend(t *testing.T) {
	e := New(Options{Backend: BackendMock})
	got, src := e.Explain(context.Background(), presented(""))
	assert.Equal(t, models.ExplanationLLM, src)
	assert.Contains(t, got.WhyCorrect, "[Mock]")
	assert.True(t, strings.HasPrefix(got.CommonMistake, "Common mistake:"))
}

func TestParseResponse(t *testing.T) {
	_, err := ParseResponse("not json")
	assert.Error(t, err)

	_, err = ParseResponse(`{"why_correct": "It just is.", "key_takeaway": "x"}`)
	assert.ErrorContains(t, err, "no reasoning")

	_, err = ParseResponse(`{"why_correct": "", "key_takeaway": ""}`)
	assert.ErrorContains(t, err, "missing why_correct")

	got, err := ParseResponse("```\n{\"why_correct\": \"Why this is correct: because.\", \"key_takeaway\": \"KEY TAKEAWAY: rule\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Why this is correct: because.", got.WhyCorrect)
	assert.Equal(t, "KEY TAKEAWAY: rule", got.KeyTakeaway)
	assert.Empty(t, got.CommonMistake)
}

func TestBuildUserPrompt_UsesOriginalOrder(t *testing.T) {
	p := presented("")
	p.PresentedChoices = [models.ChoiceCount]string{"Set-aside", "Micro-purchase", "Sole source", "Full and open competition"}
	p.PresentedCorrectIndex = 3

	prompt := BuildUserPrompt(p)
	assert.Contains(t, prompt, "Correct answer: Full and open competition")
	assert.Contains(t, prompt, "FAR references: FAR 6.101, FAR 6.302")
	assert.Less(t, strings.Index(prompt, "- Sole source"), strings.Index(prompt, "- Set-aside"))
}
