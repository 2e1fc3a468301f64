package assessment

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrMalformedPayload = errors.New("malformed assessment payload")

// Normalize decodes a model reply into a Result. It never fails: when the
// reply cannot be decoded the Fallback result is returned together with an
// error wrapping ErrMalformedPayload that describes what was wrong.
func Normalize(raw string) (Result, error) {
	res, err := decode(stripCodeFence(raw))
	if err != nil {
		return Fallback(), fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return res, nil
}

// stripCodeFence removes markdown fences models add around JSON
// (```json ... ``` or ``` ... ```).
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func decode(s string) (Result, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return Result{}, err
	}
	if fields == nil {
		return Result{}, errors.New("reply is not a JSON object")
	}

	score, err := riskScore(fields["riskScore"])
	if err != nil {
		return Result{}, err
	}

	summary, ok := fields["summary"].(string)
	if !ok || strings.TrimSpace(summary) == "" {
		return Result{}, errors.New("summary missing or not a string")
	}

	res := Result{
		RiskScore:         score,
		Summary:           summary,
		RiskFactors:       stringList(fields["riskFactors"]),
		ProtectiveFactors: stringList(fields["protectiveFactors"]),
		Recommendations:   stringList(fields["recommendations"]),
		Confidence:        ConfidenceMedium,
		Warning:           Disclaimer,
	}
	if c, ok := fields["confidence"].(string); ok {
		res.Confidence = parseConfidence(c)
	}
	if w, ok := fields["warning"].(string); ok && strings.TrimSpace(w) != "" {
		res.Warning = w
	}
	return res, nil
}

// riskScore accepts JSON numbers in [0,100]. Out-of-range values are rejected
// rather than clamped; fractional scores round to the nearest integer.
func riskScore(v any) (int, error) {
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("riskScore missing or not a number (%T)", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > 100 {
		return 0, fmt.Errorf("riskScore %v out of range", f)
	}
	return int(math.Round(f)), nil
}

func stringList(v any) []string {
	out := []string{}
	items, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
