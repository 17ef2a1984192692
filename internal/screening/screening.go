package screening

import (
	"errors"
	"fmt"

	"github.com/AshishSahani0/saarthi-portal/internal/models"
)

var (
	ErrUnknownInstrument = errors.New("unknown screening instrument")
	ErrAnswerCount       = errors.New("wrong number of answers for instrument")
	ErrAnswerRange       = errors.New("answer outside instrument scale")
)

// Severity bands shown alongside a score.
const (
	SeverityMinimal          = "Minimal"
	SeverityMild             = "Mild"
	SeverityModerate         = "Moderate"
	SeverityModeratelySevere = "Moderately Severe"
	SeveritySevere           = "Severe"
	SeverityLow              = "Low"
	SeverityHigh             = "High"
)

// instrumentSpec fixes the item count and per-item scale of an
// instrument.
type instrumentSpec struct {
	items    int
	maxScore int
}

var instruments = map[string]instrumentSpec{
	models.InstrumentPHQ9:  {items: 9, maxScore: 3},
	models.InstrumentGAD7:  {items: 7, maxScore: 3},
	models.InstrumentGHQ12: {items: 12, maxScore: 3},
}

// Outcome is a scored answer sheet.
type Outcome struct {
	Instrument string
	Score      int
	Severity   string
	// RiskFlag marks submissions that need immediate staff attention
	// regardless of the total score.
	RiskFlag bool
}

// Score validates and scores one answer sheet. PHQ-9 and GAD-7 sum the
// raw 0-3 answers; GHQ-12 uses the binary 0-0-1-1 method, so its score
// ranges 0-12.
func Score(instrument string, answers []int) (Outcome, error) {
	spec, ok := instruments[instrument]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownInstrument, instrument)
	}
	if len(answers) != spec.items {
		return Outcome{}, fmt.Errorf("%w: %s expects %d, got %d", ErrAnswerCount, instrument, spec.items, len(answers))
	}
	for i, a := range answers {
		if a < 0 || a > spec.maxScore {
			return Outcome{}, fmt.Errorf("%w: item %d value %d", ErrAnswerRange, i+1, a)
		}
	}

	out := Outcome{Instrument: instrument}
	switch instrument {
	case models.InstrumentPHQ9:
		out.Score = sum(answers)
		out.Severity = severityPHQ9(out.Score)
		// Item 9 asks about self-harm; any non-zero answer is a risk
		// signal on its own.
		out.RiskFlag = answers[8] > 0
	case models.InstrumentGAD7:
		out.Score = sum(answers)
		out.Severity = severityGAD7(out.Score)
	case models.InstrumentGHQ12:
		for _, a := range answers {
			if a >= 2 {
				out.Score++
			}
		}
		out.Severity = severityGHQ12(out.Score)
		out.RiskFlag = out.Score >= 8
	}
	return out, nil
}

func sum(answers []int) int {
	total := 0
	for _, a := range answers {
		total += a
	}
	return total
}

func severityPHQ9(score int) string {
	switch {
	case score <= 4:
		return SeverityMinimal
	case score <= 9:
		return SeverityMild
	case score <= 14:
		return SeverityModerate
	case score <= 19:
		return SeverityModeratelySevere
	default:
		return SeveritySevere
	}
}

func severityGAD7(score int) string {
	switch {
	case score <= 4:
		return SeverityMinimal
	case score <= 9:
		return SeverityMild
	case score <= 14:
		return SeverityModerate
	default:
		return SeveritySevere
	}
}

func severityGHQ12(score int) string {
	switch {
	case score <= 3:
		return SeverityLow
	case score <= 7:
		return SeverityModerate
	default:
		return SeverityHigh
	}
}
