package models

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEntitlementRecompute(t *testing.T) {
	e := Entitlement{Duration: 30, StartDate: time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)}
	assert.NoError(t, e.BeforeSave(nil))
	assert.Equal(t, day(2024, 1, 1), e.StartDate)
	assert.Equal(t, day(2024, 1, 31), e.EndDate)
}

func TestEntitlementRecomputeDefaultsStartToToday(t *testing.T) {
	e := Entitlement{Duration: 1}
	e.Recompute()
	assert.Equal(t, DateOf(time.Now()), e.StartDate)
	assert.Equal(t, e.StartDate.AddDate(0, 0, 1), e.EndDate)
}

func TestEntitlementExtendKeepsStartDate(t *testing.T) {
	e := Entitlement{Duration: 10, StartDate: day(2024, 3, 1)}
	e.Recompute()
	e.Extend(10)
	assert.Equal(t, 20, e.Duration)
	assert.Equal(t, day(2024, 3, 1), e.StartDate)
	assert.Equal(t, day(2024, 3, 21), e.EndDate)
}

func TestEntitlementIsActiveOn(t *testing.T) {
	e := Entitlement{Duration: 5, StartDate: day(2024, 5, 1)}
	e.Recompute()

	tests := []struct {
		name  string
		today time.Time
		want  bool
	}{
		{"start", day(2024, 5, 1), true},
		{"end day inclusive", day(2024, 5, 6), true},
		{"end day late evening", time.Date(2024, 5, 6, 23, 0, 0, 0, time.UTC), true},
		{"day after", day(2024, 5, 7), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.IsActiveOn(tt.today))
		})
	}
}

func TestEndDateProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("end date is start plus duration after any renewals", prop.ForAll(
		func(offset int, initial int, renewals []int) bool {
			e := Entitlement{Duration: initial, StartDate: day(2020, 1, 1).AddDate(0, 0, offset)}
			e.Recompute()
			for _, r := range renewals {
				e.Extend(r)
			}
			return e.EndDate.Equal(e.StartDate.AddDate(0, 0, e.Duration))
		},
		gen.IntRange(0, 3000),
		gen.IntRange(1, 365),
		gen.SliceOf(gen.IntRange(1, 365)),
	))

	properties.TestingRun(t)
}

func TestIsMoney(t *testing.T) {
	assert.True(t, IsMoney(decimal.RequireFromString("0")))
	assert.True(t, IsMoney(decimal.RequireFromString("10.25")))
	assert.False(t, IsMoney(decimal.RequireFromString("10.255")))
	assert.False(t, IsMoney(decimal.RequireFromString("-1")))
	assert.Equal(t, "7.50", FormatMoney(decimal.RequireFromString("7.5")))
}
