package models

// NarrativeStatus is the outcome of a narrative request
type NarrativeStatus string

const (
	NarrativeOK     NarrativeStatus = "ok"
	NarrativeFailed NarrativeStatus = "failed"
)

// Narrative is the AI commentary on a metrics summary.
// A failed narrative carries a human-readable Reason and no Text.
type Narrative struct {
	Status NarrativeStatus `json:"status"`
	Text   string          `json:"text,omitempty"`
	Reason string          `json:"reason,omitempty"`
}

// NarrativeSuccess wraps generated text
func NarrativeSuccess(text string) Narrative {
	return Narrative{Status: NarrativeOK, Text: text}
}

// NarrativeFailure wraps a failure message
func NarrativeFailure(reason string) Narrative {
	return Narrative{Status: NarrativeFailed, Reason: reason}
}

// OK reports whether the narrative holds generated text
func (n Narrative) OK() bool {
	return n.Status == NarrativeOK
}

// Message returns the text to show the user: the analysis, or the failure reason
func (n Narrative) Message() string {
	if n.OK() {
		return n.Text
	}
	return n.Reason
}
