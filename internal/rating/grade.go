// Package rating turns one photo into a graded critique and a batch of
// critiques into a group report. Both paths share one backoff policy.
package rating

import (
	"fmt"
	"strings"
)

// Grade is the rating of one photo.
type Grade string

const (
	GradeS        Grade = "S"
	GradeA        Grade = "A"
	GradeB        Grade = "B"
	GradeUnrated  Grade = "Unrated"
	GradeRejected Grade = "Rejected"
)

// Tiers lists the passing grades, best first.
var Tiers = []Grade{GradeS, GradeA, GradeB}

// FallbackGrade is returned when a photo could not be rated.
const FallbackGrade = GradeB

// IsTier reports whether g is one of S, A, B.
func (g Grade) IsTier() bool {
	switch g {
	case GradeS, GradeA, GradeB:
		return true
	}
	return false
}

// ParseGrade parses a tier letter, case-insensitively.
func ParseGrade(s string) (Grade, error) {
	g := Grade(strings.ToUpper(strings.TrimSpace(s)))
	if !g.IsTier() {
		return "", fmt.Errorf("invalid grade %q", s)
	}
	return g, nil
}
