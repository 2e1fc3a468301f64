package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/Skufu/stopopioids/internal/assessment"
)

type Outcome struct {
	Case     Case
	Detected Expectation
	Score    int
	Err      error
}

func (o Outcome) Correct() bool {
	return o.Err == nil && o.Detected == o.Case.Expect
}

// Checker drives a running relay endpoint with canned cases.
type Checker struct {
	URL    string
	Stream bool
	Client *http.Client
	Out    io.Writer
}

// highRiskPhrases flag a positive detection in streamed prose.
var highRiskPhrases = []string{
	"high risk",
	"significant risk",
	"concerning pattern",
	"multiple risk factors",
	"red flags",
}

func (c *Checker) Run(ctx context.Context, tc Case) Outcome {
	out := Outcome{Case: tc}

	body, err := json.Marshal(map[string]string{"text": tc.Input})
	if err != nil {
		out.Err = err
		return out
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		out.Err = err
		return out
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		out.Err = err
		return out
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		out.Err = fmt.Errorf("endpoint returned %s", resp.Status)
		return out
	}

	if c.Stream {
		var prose strings.Builder
		if _, err := io.Copy(io.MultiWriter(&prose, c.Out), resp.Body); err != nil {
			out.Err = err
			return out
		}
		fmt.Fprintln(c.Out)
		out.Detected = detectProse(prose.String())
		return out
	}

	var res assessment.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		out.Err = fmt.Errorf("decode result: %w", err)
		return out
	}
	if err := validShape(res); err != nil {
		out.Err = err
		return out
	}
	if reflect.DeepEqual(res, assessment.Fallback()) {
		out.Err = errors.New("endpoint could not analyze the case (fallback result)")
		return out
	}
	out.Score = res.RiskScore
	out.Detected = detectResult(res)
	fmt.Fprintf(c.Out, "score=%d band=%s confidence=%s risk factors=%d\n",
		res.RiskScore, res.Band(), res.Confidence, len(res.RiskFactors))
	return out
}

func detectProse(text string) Expectation {
	lower := strings.ToLower(text)
	for _, phrase := range highRiskPhrases {
		if strings.Contains(lower, phrase) {
			return Positive
		}
	}
	return Negative
}

// detectResult requires a high band with at least one risk factor for a
// positive, and a low band with at most one risk factor for a negative.
// Anything in between matches neither expectation.
func detectResult(res assessment.Result) Expectation {
	switch {
	case res.Band() == assessment.BandHigh && len(res.RiskFactors) > 0:
		return Positive
	case res.Band() == assessment.BandLow && len(res.RiskFactors) <= 1:
		return Negative
	default:
		return "INDETERMINATE"
	}
}

func validShape(res assessment.Result) error {
	switch {
	case res.RiskScore < 0 || res.RiskScore > 100:
		return fmt.Errorf("riskScore %d out of range", res.RiskScore)
	case strings.TrimSpace(res.Summary) == "":
		return fmt.Errorf("summary is empty")
	case res.RiskFactors == nil || res.ProtectiveFactors == nil || res.Recommendations == nil:
		return fmt.Errorf("list fields must not be null")
	case strings.TrimSpace(res.Warning) == "":
		return fmt.Errorf("warning is empty")
	}
	return nil
}

// Accuracy is the percentage of correct outcomes.
func Accuracy(outcomes []Outcome) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	correct := 0
	for _, o := range outcomes {
		if o.Correct() {
			correct++
		}
	}
	return float64(correct) / float64(len(outcomes)) * 100
}

func PrintSummary(w io.Writer, outcomes []Outcome) {
	fmt.Fprintln(w, "Test | Expected | Detected      | Result")
	fmt.Fprintln(w, "-----+----------+---------------+-------")
	for _, o := range outcomes {
		detected := string(o.Detected)
		if o.Err != nil {
			detected = "ERROR"
		}
		result := "FAIL"
		if o.Correct() {
			result = "PASS"
		}
		fmt.Fprintf(w, "%4d | %-8s | %-13s | %s\n", o.Case.ID, o.Case.Expect, detected, result)
	}
	fmt.Fprintf(w, "\nAccuracy: %.1f%%\n", Accuracy(outcomes))
}
