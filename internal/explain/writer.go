package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/far-prep/backend/internal/models"
)

const (
	BackendTemplate  = "template"
	BackendAnthropic = "anthropic"
	BackendCLI       = "cli"
	BackendMock      = "mock"

	defaultModel   = "claude-sonnet-4-5-20250929"
	defaultTimeout = 30 * time.Second
)

type Options struct {
	Backend string
	Model   string
	APIKey  string
	CLIPath string
	Timeout time.Duration
}

// Explainer produces the explanation shown after an answer. Stored
// explanations that pass the quality rules are used as is; weak ones go to
// the LLM writer when one is configured, else to the template.
type Explainer struct {
	llm     LLMClient
	model   string
	timeout time.Duration

	mu    sync.Mutex
	cache map[string]models.EnhancedExplanation
}

func New(opts Options) *Explainer {
	var llm LLMClient
	model := opts.Model

	switch strings.ToLower(opts.Backend) {
	case BackendAnthropic:
		if model == "" {
			model = defaultModel
		}
		llm = NewAPIClient(opts.APIKey, model)
		log.Println("[explain] writer using Anthropic API:", model)
	case BackendCLI:
		cliPath := opts.CLIPath
		if cliPath == "" {
			cliPath = "claude"
		}
		llm = NewCLIClient(cliPath)
		model = "claude-cli"
		log.Println("[explain] writer using Claude CLI")
	case BackendMock:
		llm = NewMockClient()
		model = "mock"
		log.Println("[explain] writer using mock data")
	default:
		model = BackendTemplate
	}

	return NewWithClient(llm, model, opts.Timeout)
}

// NewWithClient wires a specific client; a nil client means template only.
func NewWithClient(llm LLMClient, model string, timeout time.Duration) *Explainer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Explainer{
		llm:     llm,
		model:   model,
		timeout: timeout,
		cache:   make(map[string]models.EnhancedExplanation),
	}
}

func (e *Explainer) ModelName() string {
	return e.model
}

// Explain never fails: writer errors are logged and the template is used.
func (e *Explainer) Explain(ctx context.Context, p models.PresentedQuestion) (models.EnhancedExplanation, models.ExplanationSource) {
	if !NeedsEnhancement(p.Explanation, p.PresentedChoices[p.PresentedCorrectIndex]) {
		return Build(p), models.ExplanationOriginal
	}
	if e.llm == nil {
		return Template(p), models.ExplanationTemplate
	}

	e.mu.Lock()
	cached, ok := e.cache[p.ID]
	e.mu.Unlock()
	if ok {
		return cached, models.ExplanationLLM
	}

	written, err := e.write(ctx, p)
	if err != nil {
		log.Printf("[explain] writer failed for %s, using template: %v", p.ID, err)
		return Template(p), models.ExplanationTemplate
	}

	e.mu.Lock()
	e.cache[p.ID] = written
	e.mu.Unlock()
	return written, models.ExplanationLLM
}

func (e *Explainer) write(ctx context.Context, p models.PresentedQuestion) (models.EnhancedExplanation, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.llm.Generate(ctx, SystemPrompt(), BuildUserPrompt(p))
	if err != nil {
		return models.EnhancedExplanation{}, fmt.Errorf("generate explanation: %w", err)
	}
	return ParseResponse(resp.Content)
}

type writtenExplanation struct {
	WhyCorrect    string `json:"why_correct"`
	KeyTakeaway   string `json:"key_takeaway"`
	CommonMistake string `json:"common_mistake"`
}

// ParseResponse decodes a writer reply, tolerating markdown code fences and
// missing section labels.
func ParseResponse(body string) (models.EnhancedExplanation, error) {
	var w writtenExplanation
	if err := json.Unmarshal([]byte(stripCodeFences(body)), &w); err != nil {
		return models.EnhancedExplanation{}, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	w.WhyCorrect = strings.TrimSpace(w.WhyCorrect)
	w.KeyTakeaway = strings.TrimSpace(w.KeyTakeaway)
	w.CommonMistake = strings.TrimSpace(w.CommonMistake)

	var errs []string
	if w.WhyCorrect == "" {
		errs = append(errs, "missing why_correct")
	} else if !hasRequiredTerm(w.WhyCorrect) {
		errs = append(errs, "why_correct gives no reasoning")
	}
	if w.KeyTakeaway == "" {
		errs = append(errs, "missing key_takeaway")
	}
	if len(errs) > 0 {
		return models.EnhancedExplanation{}, fmt.Errorf("invalid explanation: %s", strings.Join(errs, "; "))
	}

	out := models.EnhancedExplanation{
		WhyCorrect:    withLabel(w.WhyCorrect, "Why this is correct:"),
		KeyTakeaway:   withLabel(w.KeyTakeaway, "Key takeaway:"),
		CommonMistake: w.CommonMistake,
		WasEnhanced:   true,
	}
	if out.CommonMistake != "" {
		out.CommonMistake = withLabel(out.CommonMistake, "Common mistake:")
	}
	return out, nil
}

func withLabel(s, label string) string {
	if strings.HasPrefix(strings.ToLower(s), strings.ToLower(label)) {
		return s
	}
	return label + " " + s
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSpace(s)
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}
