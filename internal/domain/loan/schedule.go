package loan

import (
	"time"

	"loan-manager/internal/pkg/apperrors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Frequency string

const (
	FrequencyMonthly    Frequency = "monthly"
	FrequencyQuarterly  Frequency = "quarterly"
	FrequencyHalfYearly Frequency = "half-yearly"
	FrequencyYearly     Frequency = "yearly"
)

type frequencyTerms struct {
	divisor        int64
	monthIncrement int
}

var frequencies = map[Frequency]frequencyTerms{
	FrequencyMonthly:    {divisor: 12, monthIncrement: 1},
	FrequencyQuarterly:  {divisor: 4, monthIncrement: 3},
	FrequencyHalfYearly: {divisor: 2, monthIncrement: 6},
	FrequencyYearly:     {divisor: 1, monthIncrement: 12},
}

func (f Frequency) IsValid() bool {
	_, ok := frequencies[f]
	return ok
}

func (f Frequency) Divisor() int64 {
	return frequencies[f].divisor
}

func (f Frequency) MonthIncrement() int {
	return frequencies[f].monthIncrement
}

// ValidateTerms checks the inputs of the schedule generator.
func ValidateTerms(principal Money, annualRatePercent float64, startDate, endDate time.Time, frequency Frequency) error {
	if principal <= 0 {
		return apperrors.NewValidationError("principal", "must be greater than zero")
	}
	if annualRatePercent <= 0 {
		return apperrors.NewValidationError("interestRate", "must be greater than zero")
	}
	if startDate.IsZero() {
		return apperrors.NewValidationError("startDate", "is required")
	}
	if endDate.IsZero() {
		return apperrors.NewValidationError("endDate", "is required")
	}
	if !DateOnly(startDate).Before(DateOnly(endDate)) {
		return apperrors.NewValidationError("endDate", "must be after startDate")
	}
	if !frequency.IsValid() {
		return apperrors.NewValidationError("interestFrequency", "must be one of monthly, quarterly, half-yearly, yearly")
	}
	return nil
}

// PerPeriodAmount is the fixed interest charged for every installment, rounded half-up to cents.
func PerPeriodAmount(principal Money, annualRatePercent float64, frequency Frequency) Money {
	annual := decimal.NewFromFloat(principal).
		Mul(decimal.NewFromFloat(annualRatePercent)).
		Div(decimal.NewFromInt(100))
	return annual.Div(decimal.NewFromInt(frequency.Divisor())).Round(2).InexactFloat64()
}

// GenerateInterestPayments builds the installment schedule covering [startDate, endDate].
// A final period shorter than the frequency still charges the full per-period amount.
func GenerateInterestPayments(principal Money, annualRatePercent float64, startDate, endDate time.Time, frequency Frequency) ([]InterestPayment, error) {
	if err := ValidateTerms(principal, annualRatePercent, startDate, endDate, frequency); err != nil {
		return nil, err
	}

	start, end := DateOnly(startDate), DateOnly(endDate)
	amount := PerPeriodAmount(principal, annualRatePercent, frequency)
	increment := frequency.MonthIncrement()

	payments := make([]InterestPayment, 0, estimatePeriods(start, end, increment))
	current := start
	for current.Before(end) {
		next := addMonths(current, increment)
		effective := next
		if effective.After(end) {
			effective = end
		}

		payments = append(payments, InterestPayment{
			ID:          uuid.NewString(),
			DueDate:     effective,
			Amount:      amount,
			Status:      PaymentStatusPending,
			PeriodStart: current,
			PeriodEnd:   effective,
		})

		if !effective.Before(end) {
			break
		}
		current = next
	}

	return payments, nil
}

// addMonths moves t forward by whole months, clamping the day to the end of the target month.
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(first); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

func estimatePeriods(start, end time.Time, increment int) int {
	months := (end.Year()-start.Year())*12 + int(end.Month()-start.Month())
	n := months/increment + 1
	if n < 1 {
		return 1
	}
	return n
}

func round2(v Money) Money {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
