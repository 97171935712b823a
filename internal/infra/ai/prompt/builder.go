package prompt

import (
	"strings"

	"github.com/bryanwahyu/fineprint/internal/domain/ai"
)

// SystemPrompt sets the model's role and forces a JSON-only reply.
const SystemPrompt = "You are a consumer protection expert. You analyze promotional offers and fine print to help people make informed decisions. Always respond with valid JSON."

const userTemplate = `You are a consumer protection expert analyzing promotional offers and their fine print. Your job is to help regular people understand what they're really signing up for.

You will be given text scraped from a promotional website including:
1. Main promotional content
2. Fine print and terms of service
3. Any additional context from related pages

Your task is to analyze this information and provide a structured breakdown that helps consumers make informed decisions.

SOURCE URL: {{source_url}}

INPUT:
{{input_text}}

Respond with one JSON object in exactly this shape:

{
  "offerSummary": "A 2-3 sentence summary of what the promotion is offering",
  "plainEnglishSummary": "Explain the fine print in language a 5th grader could understand. Be conversational and clear.",
  "hiddenRequirements": [
    "Each hidden requirement, minimum spend, or condition not prominently displayed",
    "Include things like auto-renewal, minimum purchase amounts, eligibility restrictions"
  ],
  "redFlags": [
    "Serious concerns like cancellation difficulty, unexpected fees, misleading claims",
    "Focus on things that could harm or surprise the consumer"
  ],
  "riskScore": <integer 0-100>,
  "clarityScore": <integer 0-100>,
  "cancellationDifficulty": "<Easy|Medium|Hard>",
  "riskScoreExplanation": "One sentence on why this risk score was assigned",
  "clarityScoreExplanation": "One sentence on why this clarity score was assigned"
}

RULES:
- riskScore and clarityScore are integers from 0 to 100.
- cancellationDifficulty must be exactly one of: Easy, Medium, Hard.
- Each explanation is a single sentence.
- Keep hiddenRequirements and redFlags concise and specific. Use an empty array when there are none.

SCORING GUIDELINES:
- Risk Score: how risky is this offer for the average consumer?
  - 0-30: Low risk, straightforward offer
  - 31-60: Moderate risk, some concerning terms
  - 61-100: High risk, significant potential for harm or regret
- Clarity Score: how clearly is the offer explained?
  - 0-30: Very unclear, deceptive, or confusing
  - 31-60: Moderately clear with some ambiguity
  - 61-100: Very clear and transparent
- Cancellation Difficulty:
  - Easy: Can cancel online/app anytime, no hoops to jump through
  - Medium: Requires calling or some effort but reasonable
  - Hard: Must call, long wait times, retention tactics, or unclear process

Be honest and direct. If something seems designed to trick people, say so.

Respond ONLY with the JSON object. No markdown, no code fences, no commentary.`

// Builder renders the fixed analysis instruction. Output depends only on its inputs.
type Builder struct{}

func NewBuilder() Builder { return Builder{} }

func (Builder) Build(text, sourceURL string) ai.CompletionRequest {
	if strings.TrimSpace(sourceURL) == "" {
		sourceURL = "(not provided)"
	}
	r := strings.NewReplacer("{{source_url}}", sourceURL, "{{input_text}}", text)
	return ai.CompletionRequest{
		System: SystemPrompt,
		User:   r.Replace(userTemplate),
	}
}
