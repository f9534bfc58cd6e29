package scoring

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"
)

// Mode selects how a submission is compared with the expected answer.
type Mode string

const (
	// ModeSubsequence passes when the expected answer appears, in order, inside the submission.
	ModeSubsequence Mode = "subsequence"
	// ModeExact passes when the trimmed program output equals the trimmed expected output.
	ModeExact Mode = "exact"
)

// FullCorrectness is the correctness value of a passing submission in subsequence mode.
const FullCorrectness = 10.0

// ParseMode parses a correctness mode name. Empty selects ModeSubsequence.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSubsequence:
		return ModeSubsequence, nil
	case ModeExact:
		return ModeExact, nil
	}
	return "", fmt.Errorf("%w: unknown correctness mode %q", ErrInvalidInput, s)
}

// EvaluateCorrectness compares a submission with the expected answer.
// Subsequence mode yields 0 or FullCorrectness, exact mode yields 0 or 1.
// Empty inputs score 0 without error.
func EvaluateCorrectness(mode Mode, submission, expected string) (float64, error) {
	switch mode {
	case ModeSubsequence:
		return subsequence(submission, expected), nil
	case ModeExact:
		return exact(submission, expected), nil
	}
	return 0, fmt.Errorf("%w: unknown correctness mode %q", ErrInvalidInput, mode)
}

// Passed reports whether a correctness value produced in the given mode is a pass.
func Passed(mode Mode, correctness float64) bool {
	switch mode {
	case ModeSubsequence:
		return correctness >= FullCorrectness
	case ModeExact:
		return correctness >= 1
	}
	return false
}

// DecodeOutput decodes base64 program output as returned by the execution service.
// Line breaks inside the encoded text are ignored.
func DecodeOutput(encoded string) (string, error) {
	clean := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, encoded)
	if clean == "" {
		return "", nil
	}
	b, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return "", fmt.Errorf("%w: decode output: %v", ErrInvalidInput, err)
	}
	return string(b), nil
}

func subsequence(submission, expected string) float64 {
	sub := normalize(submission)
	want := []rune(normalize(expected))
	if len(sub) == 0 || len(want) == 0 {
		return 0
	}
	i := 0
	for _, r := range sub {
		if i < len(want) && r == want[i] {
			i++
		}
	}
	if i == len(want) {
		return FullCorrectness
	}
	return 0
}

func exact(output, expected string) float64 {
	got := strings.TrimSpace(output)
	want := strings.TrimSpace(expected)
	if got == "" || want == "" {
		return 0
	}
	if got == want {
		return 1
	}
	return 0
}

// normalize drops all whitespace and lower-cases the rest.
func normalize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	return sb.String()
}
