package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AnswerKind tags the variant held by an AnswerValue.
type AnswerKind int

const (
	AnswerText AnswerKind = iota + 1
	AnswerChoices
	AnswerNumber
)

// AnswerValue is a normalized registration answer: text, a list of choices, or a number.
// It is stored as a JSON string, array of strings or number.
type AnswerValue struct {
	Kind    AnswerKind
	Text    string
	Choices []string
	Number  float64
}

func TextAnswer(s string) AnswerValue { return AnswerValue{Kind: AnswerText, Text: s} }
func ChoicesAnswer(c []string) AnswerValue { return AnswerValue{Kind: AnswerChoices, Choices: c} }
func NumberAnswer(n float64) AnswerValue { return AnswerValue{Kind: AnswerNumber, Number: n} }

// MarshalJSON implements json.Marshaler.
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case AnswerText:
		return json.Marshal(v.Text)
	case AnswerChoices:
		if v.Choices == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Choices)
	case AnswerNumber:
		return json.Marshal(v.Number)
	}
	return nil, fmt.Errorf("answer value: unknown kind %d", v.Kind)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *AnswerValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("answer value: empty")
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = TextAnswer(s)
	case '[':
		var c []string
		if err := json.Unmarshal(b, &c); err != nil {
			return err
		}
		*v = ChoicesAnswer(c)
	default:
		var n float64
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("answer value: %w", err)
		}
		*v = NumberAnswer(n)
	}
	return nil
}

// String renders the value for display.
func (v AnswerValue) String() string {
	switch v.Kind {
	case AnswerChoices:
		return strings.Join(v.Choices, ", ")
	case AnswerNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	}
	return v.Text
}

// AnswerInput is a raw submitted form value before coercion. Forms send either a single
// scalar or a list; numbers and booleans are kept in their JSON text form.
type AnswerInput struct {
	Values []string
	List   bool
}

// UnmarshalJSON accepts a string, number, boolean, null or an array of those.
func (a *AnswerInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = AnswerInput{}
		return nil
	}
	if len(b) > 0 && b[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		out := AnswerInput{List: true, Values: make([]string, 0, len(raw))}
		for _, item := range raw {
			s, ok, err := scalarString(item)
			if err != nil {
				return err
			}
			if ok {
				out.Values = append(out.Values, s)
			}
		}
		*a = out
		return nil
	}
	s, ok, err := scalarString(b)
	if err != nil {
		return err
	}
	if ok {
		*a = AnswerInput{Values: []string{s}}
	} else {
		*a = AnswerInput{}
	}
	return nil
}

func scalarString(b json.RawMessage) (string, bool, error) {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return "", false, nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", false, err
		}
		return s, true, nil
	}
	if len(b) > 0 && (b[0] == '{' || b[0] == '[') {
		return "", false, fmt.Errorf("answer must be a string, number or list of strings")
	}
	return string(b), true, nil
}

// Text returns the scalar form of the input: trimmed, with list items joined by commas.
func (a AnswerInput) Text() string {
	return strings.TrimSpace(strings.Join(a.Values, ","))
}

// Choices returns the trimmed non-empty values. A single scalar becomes a one-element list.
func (a AnswerInput) Choices() []string {
	out := make([]string, 0, len(a.Values))
	for _, v := range a.Values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
