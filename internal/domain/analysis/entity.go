package analysis

import (
	"fmt"
	"strings"
	"time"
)

// CancellationDifficulty is a closed set; anything else from the model is rejected.
type CancellationDifficulty string

const (
	CancellationEasy   CancellationDifficulty = "Easy"
	CancellationMedium CancellationDifficulty = "Medium"
	CancellationHard   CancellationDifficulty = "Hard"
)

// ParseCancellationDifficulty accepts the three canonical values, ignoring
// case and surrounding whitespace, and returns the canonical spelling.
func ParseCancellationDifficulty(s string) (CancellationDifficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return CancellationEasy, nil
	case "medium":
		return CancellationMedium, nil
	case "hard":
		return CancellationHard, nil
	}
	return "", fmt.Errorf("unknown cancellation difficulty %q", s)
}

// AnalysisResult is the structured fine print summary returned to the client.
type AnalysisResult struct {
	OfferSummary            string                 `json:"offerSummary"`
	PlainEnglishSummary     string                 `json:"plainEnglishSummary"`
	HiddenRequirements      []string               `json:"hiddenRequirements"`
	RedFlags                []string               `json:"redFlags"`
	RiskScore               int                    `json:"riskScore"`
	ClarityScore            int                    `json:"clarityScore"`
	CancellationDifficulty  CancellationDifficulty `json:"cancellationDifficulty"`
	RiskScoreExplanation    *string                `json:"riskScoreExplanation,omitempty"`
	ClarityScoreExplanation *string                `json:"clarityScoreExplanation,omitempty"`
}

// AnalyzeRequest is one call to POST /analyze/url.
type AnalyzeRequest struct {
	URL    string `json:"url"`
	UserID string `json:"user_id"`
}

// Page is a fetched HTML document.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	HTML       string
	Rendered   bool
}

// Document is the readable content pulled out of one Page.
type Document struct {
	URL       string
	Title     string
	FinePrint []string
	Body      string
	Links     []string
}

// Stage is a state of the analysis pipeline.
type Stage string

const (
	StageReceived      Stage = "received"
	StageQuotaChecked  Stage = "quota_checked"
	StageFetched       Stage = "fetched"
	StageExtracted     Stage = "extracted"
	StagePrompted      Stage = "prompted"
	StageModelCalled   Stage = "model_called"
	StageParsed        Stage = "parsed"
	StageQuotaRecorded Stage = "quota_recorded"
	StageDone          Stage = "done"
)

// Report is the outcome of a successful pipeline run.
type Report struct {
	ID             string
	SourceURL      string
	FinalURL       string
	Result         *AnalysisResult
	ScansRemaining int
	Stages         []Stage
	Duration       time.Duration
}
