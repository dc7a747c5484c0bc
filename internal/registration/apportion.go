package registration

// SplitEvenly divides total cents into n parts that sum to total. The first
// total%n parts get one extra cent.
func SplitEvenly(total int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	parts := make([]int64, n)
	base := total / int64(n)
	rem := total % int64(n)
	for i := range parts {
		parts[i] = base
		if int64(i) < rem {
			parts[i]++
		}
	}
	return parts
}
