package models

// EnhancedExplanation is the structured explanation shown after an answer.
type EnhancedExplanation struct {
	WhyCorrect    string `json:"why_correct"`
	KeyTakeaway   string `json:"key_takeaway"`
	CommonMistake string `json:"common_mistake,omitempty"`
	WasEnhanced   bool   `json:"was_enhanced"`
}

type ExplanationSource string

const (
	ExplanationOriginal ExplanationSource = "original"
	ExplanationTemplate ExplanationSource = "template"
	ExplanationLLM      ExplanationSource = "llm"
)

type ExplanationResponse struct {
	QuestionID  string              `json:"question_id"`
	Explanation EnhancedExplanation `json:"explanation"`
	Contrast    []string            `json:"contrast"`
	Source      ExplanationSource   `json:"source"`
}
