package common

import "math"

// Round rounds half away from zero.
func Round(num float64) int {
	return int(num + math.Copysign(0.5, num))
}

// DecimalToFixed rounds num to the given number of decimal places.
func DecimalToFixed(num float64, precision int) float64 {
	scale := math.Pow(10, float64(precision))
	return float64(Round(num*scale)) / scale
}
