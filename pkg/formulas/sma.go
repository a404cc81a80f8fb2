package formulas

import (
	"github.com/markcheno/go-talib"
)

// SMASeries returns the simple moving average of values over period, aligned
// with the input. Positions without a full window are NaN.
// Returns nil if there are fewer values than period.
func SMASeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}

	sma := talib.Sma(values, period)

	// talib leaves the warm-up window as zeros
	for i := 0; i < period-1 && i < len(sma); i++ {
		sma[i] = nan()
	}
	return sma
}
