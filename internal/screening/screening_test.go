package screening

import (
	"testing"

	"github.com/AshishSahani0/saarthi-portal/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScorePHQ9(t *testing.T) {
	tests := []struct {
		name         string
		answers      []int
		wantScore    int
		wantSeverity string
		wantRisk     bool
	}{
		{"all zeros", []int{0, 0, 0, 0, 0, 0, 0, 0, 0}, 0, SeverityMinimal, false},
		{"mild", []int{1, 1, 1, 1, 1, 1, 1, 0, 0}, 7, SeverityMild, false},
		{"moderate", []int{2, 2, 2, 2, 2, 0, 0, 0, 0}, 10, SeverityModerate, false},
		{"moderately severe", []int{2, 2, 2, 2, 2, 2, 2, 1, 0}, 15, SeverityModeratelySevere, false},
		{"severe", []int{3, 3, 3, 3, 3, 3, 3, 3, 0}, 24, SeveritySevere, false},
		{"item nine flags risk at any score", []int{0, 0, 0, 0, 0, 0, 0, 0, 1}, 1, SeverityMinimal, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Score(models.InstrumentPHQ9, tt.answers)
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantSeverity, got.Severity)
			assert.Equal(t, tt.wantRisk, got.RiskFlag)
		})
	}
}

func TestScoreGAD7(t *testing.T) {
	got, err := Score(models.InstrumentGAD7, []int{3, 3, 3, 3, 3, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 15, got.Score)
	assert.Equal(t, SeveritySevere, got.Severity)
	assert.False(t, got.RiskFlag)

	got, err = Score(models.InstrumentGAD7, []int{1, 1, 1, 1, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, SeverityMinimal, got.Severity)
}

func TestScoreGHQ12BinaryMethod(t *testing.T) {
	// 0-0-1-1 scoring: only answers of 2 or 3 count.
	answers := []int{0, 1, 2, 3, 2, 3, 0, 1, 2, 3, 0, 1}
	got, err := Score(models.InstrumentGHQ12, answers)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Score)
	assert.Equal(t, SeverityModerate, got.Severity)

	high := []int{2, 2, 2, 2, 2, 2, 2, 2, 0, 0, 0, 0}
	got, err = Score(models.InstrumentGHQ12, high)
	require.NoError(t, err)
	assert.Equal(t, SeverityHigh, got.Severity)
	assert.True(t, got.RiskFlag)
}

func TestScoreValidation(t *testing.T) {
	_, err := Score("MBTI", []int{1})
	assert.ErrorIs(t, err, ErrUnknownInstrument)

	_, err = Score(models.InstrumentPHQ9, []int{1, 2, 3})
	assert.ErrorIs(t, err, ErrAnswerCount)

	_, err = Score(models.InstrumentGAD7, []int{0, 0, 0, 0, 0, 0, 4})
	assert.ErrorIs(t, err, ErrAnswerRange)

	_, err = Score(models.InstrumentGAD7, []int{0, 0, 0, 0, 0, 0, -1})
	assert.ErrorIs(t, err, ErrAnswerRange)
}
