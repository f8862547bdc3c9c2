package prompt

import (
	"fmt"
	"strings"
)

// UnifiedDiff returns a line diff between two template bodies, or "" when
// they are equal. Unchanged lines are prefixed with a space.
func UnifiedDiff(a, b string) string {
	return labeledDiff("a", "b", a, b)
}

// Diff returns the diff between two versions of a template, or "" if either
// version does not exist.
func (s *Store) Diff(name string, v1, v2 int) string {
	p1, ok1 := s.Get(name, v1)
	p2, ok2 := s.Get(name, v2)
	if !ok1 || !ok2 {
		return ""
	}
	return labeledDiff(fmt.Sprintf("%s@v%d", name, p1.Version), fmt.Sprintf("%s@v%d", name, p2.Version), p1.Body, p2.Body)
}

func labeledDiff(la, lb, a, b string) string {
	if a == b {
		return ""
	}
	al := strings.Split(a, "\n")
	bl := strings.Split(b, "\n")

	// lcs[i][j] is the common subsequence length of al[i:] and bl[j:].
	lcs := make([][]int, len(al)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(bl)+1)
	}
	for i := len(al) - 1; i >= 0; i-- {
		for j := len(bl) - 1; j >= 0; j-- {
			if al[i] == bl[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", la, lb)
	i, j := 0, 0
	for i < len(al) && j < len(bl) {
		switch {
		case al[i] == bl[j]:
			fmt.Fprintf(&sb, " %s\n", al[i])
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			fmt.Fprintf(&sb, "-%s\n", al[i])
			i++
		default:
			fmt.Fprintf(&sb, "+%s\n", bl[j])
			j++
		}
	}
	for ; i < len(al); i++ {
		fmt.Fprintf(&sb, "-%s\n", al[i])
	}
	for ; j < len(bl); j++ {
		fmt.Fprintf(&sb, "+%s\n", bl[j])
	}
	return sb.String()
}
