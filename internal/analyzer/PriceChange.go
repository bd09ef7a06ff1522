package analyzer

import (
	"errors"
	"math"
	"sort"

	"github.com/elys-network/yieldbalancer/internal/types"
)

// ErrInsufficientData means fewer than two usable prices were given.
var ErrInsufficientData = errors.New("insufficient data points to calculate price movement")

// PriceChange returns the fractional move from the first to the last positive price,
// e.g. 0.05 for +5%. Prices are ordered by timestamp first.
func PriceChange(prices []types.PriceData) (float64, error) {
	sorted := usablePrices(prices)
	if len(sorted) < 2 {
		return 0, ErrInsufficientData
	}
	first, last := sorted[0].Price, sorted[len(sorted)-1].Price
	return (last - first) / first, nil
}

// RealizedVolatility is the annualized population stdev of log returns.
// annualizationFactor matches the sampling frequency: 8760 for hourly, 365 for daily.
func RealizedVolatility(prices []types.PriceData, annualizationFactor float64) (float64, error) {
	sorted := usablePrices(prices)
	if len(sorted) < 2 {
		return 0, ErrInsufficientData
	}

	logReturns := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		logReturns = append(logReturns, math.Log(sorted[i].Price/sorted[i-1].Price))
	}

	var sum float64
	for _, r := range logReturns {
		sum += r
	}
	mean := sum / float64(len(logReturns))

	var sumSqDiff float64
	for _, r := range logReturns {
		sumSqDiff += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(sumSqDiff / float64(len(logReturns)))
	return stdDev * math.Sqrt(annualizationFactor), nil
}

// usablePrices drops non-positive and non-finite prices and sorts a copy chronologically.
func usablePrices(prices []types.PriceData) []types.PriceData {
	out := make([]types.PriceData, 0, len(prices))
	for _, p := range prices {
		if p.Price <= 0 || math.IsNaN(p.Price) || math.IsInf(p.Price, 0) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
