package eval

// RougeLF1 scores prediction against reference by the longest common
// subsequence of their characters.
func RougeLF1(reference, prediction string) float64 {
	ref, pred := []rune(reference), []rune(prediction)
	if len(ref) == 0 || len(pred) == 0 {
		return 0
	}
	lcs := lcsLength(ref, pred)
	if lcs == 0 {
		return 0
	}
	precision := float64(lcs) / float64(len(pred))
	recall := float64(lcs) / float64(len(ref))
	return 2 * precision * recall / (precision + recall)
}

func lcsLength(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
