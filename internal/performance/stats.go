package performance

import (
	"math"
	"time"

	"github.com/elys-network/yieldbalancer/internal/types"
)

const daysPerYear = 365.0

// AnnualizedAPY compounds the total return over whole elapsed days, in percent.
// It returns 0 when less than a day has passed or the initial value is not positive.
func AnnualizedAPY(initial, current float64, elapsed time.Duration) float64 {
	days := math.Floor(elapsed.Hours() / 24)
	if days <= 0 || initial <= 0 {
		return 0
	}
	returnRate := current/initial - 1
	annualized := math.Pow(1+returnRate, daysPerYear/days) - 1
	return guard(annualized * 100)
}

// TotalReturn is the simple return since the first point, in percent.
func TotalReturn(initial, current float64) float64 {
	if initial <= 0 {
		return 0
	}
	return guard((current/initial - 1) * 100)
}

// SharpeRatio uses simple period returns and the population standard deviation.
// Pairs whose earlier value is zero are skipped.
func SharpeRatio(points []types.TimeSeriesPoint, riskFreeRate float64) float64 {
	// --- Input Validation ---
	if len(points) < 2 {
		return 0
	}

	// --- Period Returns ---
	returns := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Value
		if prev == 0 {
			continue
		}
		returns = append(returns, (points[i].Value-prev)/prev)
	}
	if len(returns) == 0 {
		return 0
	}

	// --- Mean and Population Standard Deviation ---
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sumSqDiff float64
	for _, r := range returns {
		sumSqDiff += math.Pow(r-mean, 2)
	}
	stdDev := math.Sqrt(sumSqDiff / float64(len(returns)))
	if stdDev == 0 {
		return 0
	}
	return guard((mean - riskFreeRate) / stdDev)
}

// WinRate is the percentage of actioned pairs whose value increased.
// A pair is actioned when its later point carries an action.
func WinRate(points []types.TimeSeriesPoint) float64 {
	var wins, trades int
	for i := 1; i < len(points); i++ {
		if points[i].Action == nil {
			continue
		}
		trades++
		if points[i].Value > points[i-1].Value {
			wins++
		}
	}
	if trades == 0 {
		return 0
	}
	return float64(wins) / float64(trades) * 100
}

// AvgRebalanceGain is the mean return of actioned pairs, in percent.
func AvgRebalanceGain(points []types.TimeSeriesPoint) float64 {
	var total float64
	var n int
	for i := 1; i < len(points); i++ {
		if points[i].Action == nil || points[i-1].Value == 0 {
			continue
		}
		total += (points[i].Value - points[i-1].Value) / points[i-1].Value
		n++
	}
	if n == 0 {
		return 0
	}
	return guard(total / float64(n) * 100)
}

func guard(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
