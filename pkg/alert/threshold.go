package alert

import "fmt"

// DefaultThresholds are the battery percentages that raise a low battery
// alert when crossed downward.
var DefaultThresholds = []int{25, 10, 5, 1}

// ValidateThresholds checks that thresholds is strictly descending and
// every value is within [0,100].
func ValidateThresholds(thresholds []int) error {
	for i, t := range thresholds {
		if t < 0 || t > 100 {
			return fmt.Errorf("threshold %d out of range [0,100]", t)
		}
		if i > 0 && t >= thresholds[i-1] {
			return fmt.Errorf("thresholds must be strictly descending, got %d after %d", t, thresholds[i-1])
		}
	}
	return nil
}

// LowestCrossed returns the lowest threshold t with prev > t >= curr. Only
// that one is reported when a single drop skips over several thresholds.
func LowestCrossed(thresholds []int, prev, curr float64) (int, bool) {
	found := false
	lowest := 0
	for _, t := range thresholds {
		ft := float64(t)
		if prev > ft && ft >= curr {
			if !found || t < lowest {
				lowest = t
			}
			found = true
		}
	}
	return lowest, found
}
