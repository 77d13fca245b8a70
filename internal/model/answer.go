package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AnswerKind tags the two answer representations.
type AnswerKind string

const (
	AnswerKindMCQ    AnswerKind = "mcq"
	AnswerKindTheory AnswerKind = "theory"
)

// Answer is a tagged union: a selected option index for an MCQ question or
// free text for a theory question. Absence of an Answer in an attempt's
// answer map means the question is unanswered.
type Answer struct {
	Kind   AnswerKind
	Option int
	Text   string
}

// MCQAnswer builds an MCQ answer for the given option index.
func MCQAnswer(option int) Answer {
	return Answer{Kind: AnswerKindMCQ, Option: option}
}

// TheoryAnswer builds a free-text theory answer.
func TheoryAnswer(text string) Answer {
	return Answer{Kind: AnswerKindTheory, Text: text}
}

// OptionIndex coerces the answer to an option index for MCQ grading.
// Theory-kind answers carrying a numeric string are coerced too, so loose
// payloads from keepalive flushes still grade correctly.
func (a Answer) OptionIndex() (int, bool) {
	if a.Kind == AnswerKindMCQ {
		return a.Option, true
	}
	n, err := strconv.Atoi(strings.TrimSpace(a.Text))
	if err != nil {
		return 0, false
	}
	return n, true
}

type taggedAnswer struct {
	Kind   AnswerKind `json:"kind"`
	Option *int       `json:"option,omitempty"`
	Text   *string    `json:"text,omitempty"`
}

// MarshalJSON emits the tagged object form.
func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AnswerKindTheory:
		return json.Marshal(taggedAnswer{Kind: AnswerKindTheory, Text: &a.Text})
	default:
		opt := a.Option
		return json.Marshal(taggedAnswer{Kind: AnswerKindMCQ, Option: &opt})
	}
}

// UnmarshalJSON accepts the tagged object form as well as bare scalars:
// a number decodes as an MCQ option index, a string as theory text. The
// scalar forms exist for best-effort unload payloads, which carry whatever
// the client had in memory.
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("answer cannot be null")
	}

	switch data[0] {
	case '{':
		var t taggedAnswer
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}
		switch t.Kind {
		case AnswerKindMCQ:
			if t.Option == nil {
				return fmt.Errorf("mcq answer requires option")
			}
			*a = MCQAnswer(*t.Option)
		case AnswerKindTheory:
			if t.Text == nil {
				return fmt.Errorf("theory answer requires text")
			}
			*a = TheoryAnswer(*t.Text)
		default:
			return fmt.Errorf("unknown answer kind %q", t.Kind)
		}
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = TheoryAnswer(s)
		return nil
	default:
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("answer must be an object, string, or integer: %w", err)
		}
		*a = MCQAnswer(n)
		return nil
	}
}
