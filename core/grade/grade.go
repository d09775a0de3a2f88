// Package grade turns subject marks into totals, CGPA and letter grades.
package grade

import (
	"math/big"
	"strconv"
)

// Letter grades
const (
	A    = "A"
	B    = "B"
	C    = "C"
	D    = "D"
	E    = "E"
	Fail = "Fail"
)

const (
	MaxMark  = 100.0
	PassMark = 35.0

	// cgpaDivisor converts a percentage to the 10 point scale used by the school.
	cgpaDivisor = 9.5
)

// thresholds are evaluated highest first; each bound is inclusive.
var thresholds = []struct {
	min   float64
	grade string
}{
	{9.0, A},
	{8.0, B},
	{7.0, C},
	{6.0, D},
}

type Result struct {
	Total      float64 `json:"total"`
	Percentage float64 `json:"percentage"`
	CGPA       float64 `json:"cgpa"`
	Grade      string  `json:"grade"`
	Passed     bool    `json:"passed"`
}

// Compute derives the Result of marks. An empty list yields zeros and grade E.
func Compute(marks []float64) Result {
	var (
		total   float64
		hasFail bool
	)
	for _, m := range marks {
		total += m
		if m < PassMark {
			hasFail = true
		}
	}

	var percentage float64
	if maxTotal := float64(len(marks)) * MaxMark; maxTotal > 0 {
		percentage = (total / maxTotal) * 100
	}
	cgpa := Round2(percentage / cgpaDivisor)

	res := Result{
		Total:      total,
		Percentage: percentage,
		CGPA:       cgpa,
		Passed:     !hasFail,
	}
	if hasFail {
		res.Grade = Fail
	} else {
		res.Grade = ForCGPA(cgpa)
	}
	return res
}

// ForCGPA maps a cgpa to its letter grade, ignoring individual marks.
func ForCGPA(cgpa float64) string {
	for _, th := range thresholds {
		if cgpa >= th.min {
			return th.grade
		}
	}
	return E
}

// Round2 rounds x to 2 decimal places using the exact binary value of x,
// picking the larger neighbour on ties (the rule of JavaScript's toFixed).
func Round2(x float64) float64 {
	if x < 0 {
		return -Round2(-x)
	}
	// x * 100 is exact at 128 bits of precision
	scaled := new(big.Float).SetPrec(128).SetFloat64(x)
	scaled.Mul(scaled, big.NewFloat(100).SetPrec(128))
	scaled.Add(scaled, big.NewFloat(0.5).SetPrec(128))
	n, _ := scaled.Int(nil) // truncates toward zero, i.e. floor for x >= 0

	s := n.String()
	for len(s) < 3 {
		s = "0" + s
	}
	r, _ := strconv.ParseFloat(s[:len(s)-2]+"."+s[len(s)-2:], 64)
	return r
}
