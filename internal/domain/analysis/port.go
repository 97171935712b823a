package analysis

import (
	"context"

	"github.com/bryanwahyu/fineprint/internal/domain/ai"
)

// Fetcher retrieves a page. Implementations return *FetchError on failure.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// Extractor turns pages into prompt-ready text.
type Extractor interface {
	// Parse pulls readable content and candidate terms links out of a page.
	Parse(page *Page) (*Document, error)
	// Text merges the main document and any related documents into bounded
	// plain text, or returns *ExtractionError when too little is readable.
	Text(main *Document, related ...*Document) (string, error)
}

// PromptBuilder is a pure function of its inputs.
type PromptBuilder interface {
	Build(text, sourceURL string) ai.CompletionRequest
}

// ReplyParser validates a raw model reply. Implementations return *ParseError on failure.
type ReplyParser interface {
	Parse(raw string) (*AnalysisResult, error)
}
