// Package refill derives the dispensation windows of a prescription from its
// dosage, duration and package size.
package refill

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jwalitptl/rx-scheduler/internal/model"
	apperrors "github.com/jwalitptl/rx-scheduler/pkg/errors"
)

const (
	// Margin is how many days before and after its due date a refill may be
	// picked up.
	Margin = 7

	// MaxTreatmentDays and MaxPackages bound a single plan.
	MaxTreatmentDays = 3660
	MaxPackages      = 10000

	daysPerPackagePrecision = 8
)

// Window is one package's pickup period.
type Window struct {
	Sequence  int                 `json:"sequence"`
	DueDate   model.Date          `json:"due_date"`
	ValidFrom model.Date          `json:"valid_from"`
	ValidTo   model.Date          `json:"valid_to"`
	Units     int                 `json:"units"`
	Status    model.ReceiptStatus `json:"status"`
}

// Plan returns the ordered pickup windows for a treatment running from start
// to end inclusive. The package count is rounded up while each package's due
// date offset is truncated, so refills lean early rather than late.
func Plan(start, end model.Date, dailyDosage decimal.Decimal, packageSize int) ([]Window, error) {
	if start.IsZero() {
		return nil, apperrors.Validation("start_date", "start date is required")
	}
	if end.IsZero() || end.Before(start) {
		return nil, apperrors.Validation("end_date", "end date must not be before start date")
	}
	if err := model.ValidateDailyDosage(dailyDosage); err != nil {
		return nil, err
	}
	if packageSize <= 0 {
		return nil, apperrors.Validation("package_size", "package size must be a positive integer")
	}
	if end.DaysSince(start) >= MaxTreatmentDays {
		return nil, apperrors.Validation("end_date", fmt.Sprintf("treatment must not exceed %d days", MaxTreatmentDays))
	}

	totalDays := end.DaysSince(start) + 1
	totalUnits := dailyDosage.Mul(decimal.NewFromInt(int64(totalDays)))
	pkg := decimal.NewFromInt(int64(packageSize))

	count, ok := packageCount(totalUnits, pkg)
	if !ok {
		return nil, apperrors.Validation("package_size", fmt.Sprintf("treatment would need more than %d packages", MaxPackages))
	}
	daysPerPackage := pkg.DivRound(dailyDosage, daysPerPackagePrecision)

	windows := make([]Window, 0, count)
	for i := 0; i < count; i++ {
		offset := daysPerPackage.Mul(decimal.NewFromInt(int64(i))).Floor().IntPart()
		due := start.AddDays(int(offset))

		from := due
		if i > 0 {
			from = due.AddDays(-Margin)
			if from.Before(start) {
				from = start
			}
		}

		windows = append(windows, Window{
			Sequence:  i,
			DueDate:   due,
			ValidFrom: from,
			ValidTo:   due.AddDays(Margin),
			Units:     1,
			Status:    model.ReceiptStatusPlanned,
		})
	}
	return windows, nil
}

// packageCount is ceil(units / size) with a floor of one. It reports false
// when the result exceeds MaxPackages.
func packageCount(units, size decimal.Decimal) (int, bool) {
	q, r := units.QuoRem(size, 0)
	if r.IsPositive() {
		q = q.Add(decimal.NewFromInt(1))
	}
	if q.GreaterThan(decimal.NewFromInt(MaxPackages)) {
		return 0, false
	}
	n := int(q.IntPart())
	if n < 1 {
		n = 1
	}
	return n, true
}
