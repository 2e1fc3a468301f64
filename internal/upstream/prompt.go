package upstream

import (
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const (
	temperature = 0.3
	maxTokens   = 2000

	disclaimerLine = "⚠️ DISCLAIMER: This is NOT a medical diagnosis. This analysis is for educational purposes only. Always consult qualified healthcare professionals for medical advice."
)

const basePrompt = `You are a medical assessment AI analyzing text for potential opioid addiction risk factors.

IMPORTANT DISCLAIMER: This is NOT medical advice or a diagnosis. This is an educational tool only.

Instructions:
1. Analyze the provided text objectively for potential risk factors
2. Be cautious and evidence-based in your assessment
3. Focus on identifying documented risk patterns and indicators
4. Provide clear reasoning for your assessment
5. Always recommend seeking professional medical consultation
`

var streamPrompt = basePrompt + `
Start EVERY response with: "` + disclaimerLine + `"

Structure your response as follows:
- Disclaimer (as above)
- Summary of Analysis
- Identified Risk Factors (if any)
- Protective Factors (if any)
- Overall Assessment
- Professional Consultation Recommendation`

var jsonPrompt = basePrompt + `
Respond with a single JSON object and nothing else: no markdown, no code fences, no commentary.
The object must have exactly these fields:
{
  "riskScore": integer from 0 to 100 (0-30 low, 31-60 moderate, 61-100 high),
  "summary": one sentence summarizing the assessment,
  "riskFactors": array of short strings, empty if none,
  "protectiveFactors": array of short strings, empty if none,
  "recommendations": array of short strings,
  "confidence": "Low" | "Medium" | "High",
  "warning": "` + disclaimerLine + `"
}`

func userMessage(text string) string {
	return fmt.Sprintf("Please analyze the following medical information for potential opioid addiction risk indicators:\n\n%s", text)
}

// buildRequest is shared by both transport modes; only the system prompt and
// the stream flag differ.
func buildRequest(model, text string, stream bool) openai.ChatCompletionRequest {
	system := jsonPrompt
	if stream {
		system = streamPrompt
	}
	return openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: userMessage(text)},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stream:      stream,
	}
}
