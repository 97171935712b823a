package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCancellationDifficulty(t *testing.T) {
	tests := []struct {
		in   string
		want CancellationDifficulty
	}{
		{"Easy", CancellationEasy},
		{"medium", CancellationMedium},
		{"  HARD ", CancellationHard},
	}
	for _, tt := range tests {
		got, err := ParseCancellationDifficulty(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []string{"", "Impossible", "Very Hard", "easy-ish"} {
		_, err := ParseCancellationDifficulty(bad)
		assert.Error(t, err, bad)
	}
}

func TestPipelineError_Unwraps(t *testing.T) {
	inner := &FetchError{Kind: FetchHTTPStatus, URL: "https://example.com", StatusCode: 404}
	err := error(&PipelineError{From: StageQuotaChecked, Err: inner})

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 404, fe.StatusCode)
	assert.Contains(t, err.Error(), "quota_checked")
}

func TestExtractionError_Insufficient(t *testing.T) {
	assert.True(t, (&ExtractionError{Kind: ExtractionInsufficientContent}).Insufficient())
	assert.False(t, (&ExtractionError{Kind: ExtractionUnreadable, Err: errors.New("x")}).Insufficient())
}
