package roster

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/trezcool/gradebook/core/grade"
)

// leadingNumber matches the longest numeric prefix, the way a browser's parseFloat reads input.
var leadingNumber = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// ParseMark reads a raw mark input. Unparsable, negative or out of range values become 0.
func ParseMark(raw string) float64 {
	s := strings.TrimLeftFunc(raw, unicode.IsSpace)
	num := leadingNumber.FindString(s)
	if num == "" {
		return 0
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 || v > grade.MaxMark {
		return 0
	}
	return v
}

// ParseMarks labels raw marks "Subject 1", "Subject 2", ... in input order.
func ParseMarks(raw []string) []SubjectMark {
	marks := make([]SubjectMark, 0, len(raw))
	for i, r := range raw {
		marks = append(marks, SubjectMark{
			Subject: fmt.Sprintf("Subject %d", i+1),
			Mark:    ParseMark(r),
		})
	}
	return marks
}
