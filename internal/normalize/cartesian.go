package normalize

// cartesian computes the Cartesian product of a list of variant lists. An
// empty input list yields a single empty combination (the identity for the
// product); any individual empty list yields zero combinations overall,
// matching the invariant that empty parametrize rows produce zero tests.
func cartesian[T any](lists [][]T) [][]T {
	if len(lists) == 0 {
		return [][]T{{}}
	}
	for _, l := range lists {
		if len(l) == 0 {
			return nil
		}
	}

	result := [][]T{{}}
	for _, list := range lists {
		var next [][]T
		for _, prefix := range result {
			for _, v := range list {
				combo := make([]T, len(prefix)+1)
				copy(combo, prefix)
				combo[len(prefix)] = v
				next = append(next, combo)
			}
		}
		result = next
	}
	return result
}
