package prompt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/bryanwahyu/fineprint/internal/domain/analysis"
)

// Parser validates model replies against the AnalysisResult schema.
// String fields are returned exactly as the model wrote them.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(raw string) (*analysis.AnalysisResult, error) {
	body := stripFences(raw)
	if body == "" {
		return nil, &analysis.ParseError{Kind: analysis.ParseMalformedJSON, Err: errors.New("empty reply")}
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return nil, &analysis.ParseError{Kind: analysis.ParseMalformedJSON, Err: err}
	}
	if fields == nil {
		return nil, &analysis.ParseError{Kind: analysis.ParseMalformedJSON, Err: errors.New("reply is not a JSON object")}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &analysis.ParseError{Kind: analysis.ParseMalformedJSON, Err: errors.New("trailing content after JSON object")}
	}

	var (
		res analysis.AnalysisResult
		err error
	)
	if res.OfferSummary, err = p.requiredString(fields, "offerSummary"); err != nil {
		return nil, err
	}
	if res.PlainEnglishSummary, err = p.requiredString(fields, "plainEnglishSummary"); err != nil {
		return nil, err
	}
	if res.HiddenRequirements, err = p.requiredList(fields, "hiddenRequirements"); err != nil {
		return nil, err
	}
	if res.RedFlags, err = p.requiredList(fields, "redFlags"); err != nil {
		return nil, err
	}
	if res.RiskScore, err = score(fields, "riskScore"); err != nil {
		return nil, err
	}
	if res.ClarityScore, err = score(fields, "clarityScore"); err != nil {
		return nil, err
	}

	difficulty, err := p.requiredString(fields, "cancellationDifficulty")
	if err != nil {
		return nil, err
	}
	if res.CancellationDifficulty, err = analysis.ParseCancellationDifficulty(difficulty); err != nil {
		return nil, violation("cancellationDifficulty", err)
	}

	if res.RiskScoreExplanation, err = p.optionalString(fields, "riskScoreExplanation"); err != nil {
		return nil, err
	}
	if res.ClarityScoreExplanation, err = p.optionalString(fields, "clarityScoreExplanation"); err != nil {
		return nil, err
	}
	return &res, nil
}

func violation(field string, err error) error {
	return &analysis.ParseError{Kind: analysis.ParseSchemaViolation, Field: field, Err: err}
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func (p *Parser) requiredString(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return "", violation(name, errors.New("missing"))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", violation(name, errors.New("expected a string"))
	}
	return s, nil
}

func (p *Parser) optionalString(fields map[string]json.RawMessage, name string) (*string, error) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, violation(name, errors.New("expected a string"))
	}
	return &s, nil
}

func (p *Parser) requiredList(fields map[string]json.RawMessage, name string) ([]string, error) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return nil, violation(name, errors.New("missing"))
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, violation(name, errors.New("expected an array of strings"))
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}

// score accepts any JSON number, rounds it and clamps it into [0,100].
// A quoted number is not a number.
func score(fields map[string]json.RawMessage, name string) (int, error) {
	raw, ok := fields[name]
	if !ok || isNull(raw) {
		return 0, violation(name, errors.New("missing"))
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '"' {
		return 0, violation(name, errors.New("expected a number, got a string"))
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return 0, violation(name, errors.New("expected a number"))
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, violation(name, fmt.Errorf("not a finite number: %s", n))
	}
	f = math.Round(f)
	switch {
	case f < 0:
		return 0, nil
	case f > 100:
		return 100, nil
	}
	return int(f), nil
}

// stripFences removes a surrounding ``` or ```json block, if any.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(strings.TrimSpace(s), "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
