package assessment

import "strings"

type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

type Band string

const (
	BandLow      Band = "Low"
	BandModerate Band = "Moderate"
	BandHigh     Band = "High"
)

const (
	Disclaimer = "This is NOT a medical diagnosis. This analysis is for educational purposes only. Always consult qualified healthcare professionals for medical advice."

	fallbackSummary        = "Unable to properly analyze the provided information. The assessment could not be completed with confidence."
	fallbackRecommendation = "Please resubmit clearer medical information for a more accurate assessment."
)

// Result is the structured risk assessment returned to callers.
type Result struct {
	RiskScore         int        `json:"riskScore"`
	Summary           string     `json:"summary"`
	RiskFactors       []string   `json:"riskFactors"`
	ProtectiveFactors []string   `json:"protectiveFactors"`
	Recommendations   []string   `json:"recommendations"`
	Confidence        Confidence `json:"confidence"`
	Warning           string     `json:"warning"`
}

// Fallback is substituted whenever a provider reply cannot be decoded.
func Fallback() Result {
	return Result{
		RiskScore:         0,
		Summary:           fallbackSummary,
		RiskFactors:       []string{},
		ProtectiveFactors: []string{},
		Recommendations:   []string{fallbackRecommendation},
		Confidence:        ConfidenceLow,
		Warning:           Disclaimer,
	}
}

func (r Result) Band() Band {
	return BandFor(r.RiskScore)
}

func BandFor(score int) Band {
	switch {
	case score > 60:
		return BandHigh
	case score > 30:
		return BandModerate
	default:
		return BandLow
	}
}

func parseConfidence(v string) Confidence {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "low":
		return ConfidenceLow
	case "high":
		return ConfidenceHigh
	default:
		return ConfidenceMedium
	}
}
