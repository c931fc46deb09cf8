package omath

import "math"

// Sum ...
func Sum(nums []float64) (result float64) {
	for _, v := range nums {
		result += v
	}
	return result
}

// Mean ...
func Mean(nums []float64) float64 {
	if len(nums) == 0 {
		return 0
	}
	return Sum(nums) / float64(len(nums))
}

// Variance returns the population variance of nums.
func Variance(nums []float64) (variance float64) {
	if len(nums) == 0 {
		return 0
	}
	mean := Mean(nums)
	for _, number := range nums {
		variance += (number - mean) * (number - mean)
	}
	return variance / float64(len(nums))
}

// StandardDeviation ...
func StandardDeviation(nums []float64) float64 {
	return math.Sqrt(Variance(nums))
}

// Max returns the largest value in nums, or 0 if nums is empty.
func Max(nums []float64) float64 {
	if len(nums) == 0 {
		return 0
	}
	m := nums[0]
	for _, v := range nums[1:] {
		m = math.Max(m, v)
	}
	return m
}
