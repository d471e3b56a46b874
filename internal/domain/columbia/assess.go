package columbia

import "fmt"

// Level is the clinical risk level produced by the answer ladder.
type Level string

const (
	LevelNone     Level = "none"
	LevelLow      Level = "low"
	LevelModerate Level = "moderate"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

const (
	AnswerYes = "yes"
	AnswerNo  = "no"
)

// MaxScore is the score assigned when the most severe question is
// answered yes.
const MaxScore = 6

// Question is one item of the C-SSRS screener. Questions are asked in
// order and each one past the first is only reachable when the previous
// question was answered yes.
type Question struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Questions returns the six screener questions in administration order.
func Questions() []Question {
	return []Question{
		{ID: "q1", Text: "Have you wished you were dead or wished you could go to sleep and not wake up?"},
		{ID: "q2", Text: "Have you actually had any thoughts of killing yourself?"},
		{ID: "q3", Text: "Have you thought about how you might kill yourself?"},
		{ID: "q4", Text: "Have you had any intention of acting on these thoughts of killing yourself?"},
		{ID: "q5", Text: "Have you started to work out or worked out the details of how to kill yourself?"},
		{ID: "q6", Text: "Have you done anything, started to do anything, or prepared to do anything to end your life?"},
	}
}

var questionIDs = []string{"q1", "q2", "q3", "q4", "q5", "q6"}

// Answers maps question IDs ("q1".."q6") to "yes" or "no".
type Answers map[string]string

// Result is the outcome of scoring a completed answer set.
type Result struct {
	Level   Level    `json:"level"`
	Score   int      `json:"score"`
	Actions []string `json:"actions"`
}

// Assess scores an answer set against the C-SSRS ladder. The highest
// question answered yes determines both level and score. Answers past a
// question answered no are rejected so a partial or inconsistent
// submission cannot inflate the score.
func Assess(answers Answers) (*Result, error) {
	if answers["q1"] == "" {
		return nil, fmt.Errorf("first question must be answered")
	}
	gate := AnswerYes
	for _, id := range questionIDs {
		a := answers[id]
		if a == "" {
			gate = AnswerNo
			continue
		}
		if a != AnswerYes && a != AnswerNo {
			return nil, fmt.Errorf("invalid answer %q for %s", a, id)
		}
		if gate != AnswerYes {
			return nil, fmt.Errorf("answer for %s requires a yes to the preceding question", id)
		}
		gate = a
	}

	switch {
	case answers["q6"] == AnswerYes:
		return &Result{Level: LevelCritical, Score: 6, Actions: []string{
			"Do not leave person alone",
			"Contact emergency services (911)",
			"Notify supervisor immediately",
			"Initiate crisis protocol",
		}}, nil
	case answers["q5"] == AnswerYes:
		return &Result{Level: LevelHigh, Score: 5, Actions: []string{
			"Immediate supervisor notification",
			"Safety planning required",
			"Consider emergency evaluation",
			"Frequent monitoring",
		}}, nil
	case answers["q4"] == AnswerYes:
		return &Result{Level: LevelHigh, Score: 4, Actions: []string{
			"Immediate supervisor notification",
			"Complete safety plan",
			"Emergency evaluation recommended",
			"Continuous monitoring",
		}}, nil
	case answers["q3"] == AnswerYes:
		return &Result{Level: LevelModerate, Score: 3, Actions: []string{
			"Notify supervisor within 2 hours",
			"Complete safety plan",
			"Schedule follow-up within 24 hours",
			"Provide crisis resources",
		}}, nil
	case answers["q2"] == AnswerYes:
		return &Result{Level: LevelModerate, Score: 2, Actions: []string{
			"Clinical assessment required",
			"Safety planning",
			"Regular monitoring",
			"Document thoroughly",
		}}, nil
	case answers["q1"] == AnswerYes:
		return &Result{Level: LevelLow, Score: 1, Actions: []string{
			"Monitor mood and thoughts",
			"Provide support resources",
			"Document assessment",
			"Schedule follow-up",
		}}, nil
	default:
		return &Result{Level: LevelNone, Score: 0, Actions: []string{
			"No current suicidal ideation detected",
			"Continue routine monitoring",
		}}, nil
	}
}

// DisclosureRisk maps a clinical level onto the two-tier disclosure
// risk scale. Critical and high flag RED, moderate flags ORANGE, low
// and none carry no flag.
func (l Level) DisclosureRisk() string {
	switch l {
	case LevelCritical, LevelHigh:
		return "RED"
	case LevelModerate:
		return "ORANGE"
	default:
		return ""
	}
}

// Emergency reports whether a level warrants an emergency alert.
func (l Level) Emergency() bool {
	return l == LevelCritical || l == LevelHigh
}
