package capacity

import (
	"time"

	"payroute/internal/models"
)

// DailyWindowStart returns the start of the business day containing now:
// cutoverHour:00 local time today, or yesterday when now is before it.
func DailyWindowStart(now time.Time, loc *time.Location, cutoverHour int) time.Time {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), cutoverHour, 0, 0, 0, loc)
	if local.Before(start) {
		start = time.Date(local.Year(), local.Month(), local.Day()-1, cutoverHour, 0, 0, 0, loc)
	}
	return start
}

// MonthlyWindowStart is a sliding window, not a calendar month.
func MonthlyWindowStart(now time.Time, window time.Duration) time.Time {
	return now.Add(-window)
}

// Fits reports whether amount can be added without crossing either ceiling.
func Fits(usage Usage, psp *models.PSP, amount int64) bool {
	if psp.DailyCapacity != nil && usage.Daily+amount > *psp.DailyCapacity {
		return false
	}
	if psp.MonthlyCapacity != nil && usage.Monthly+amount > *psp.MonthlyCapacity {
		return false
	}
	return true
}

// DailyUsageFraction is used to spread load between otherwise equal PSPs.
// Unlimited PSPs report zero.
func DailyUsageFraction(usage Usage, psp *models.PSP) float64 {
	if psp.DailyCapacity == nil {
		return 0
	}
	if *psp.DailyCapacity <= 0 {
		return 1
	}
	return float64(usage.Daily) / float64(*psp.DailyCapacity)
}

// HeadroomFraction is the smallest remaining share across both ceilings,
// in [0, 1]. A PSP without ceilings has full headroom.
func HeadroomFraction(usage Usage, psp *models.PSP) float64 {
	h := 1.0
	if f := axisHeadroom(psp.DailyCapacity, usage.Daily); f < h {
		h = f
	}
	if f := axisHeadroom(psp.MonthlyCapacity, usage.Monthly); f < h {
		h = f
	}
	return h
}

func axisHeadroom(ceiling *int64, used int64) float64 {
	if ceiling == nil {
		return 1
	}
	if *ceiling <= 0 || used >= *ceiling {
		return 0
	}
	return float64(*ceiling-used) / float64(*ceiling)
}
