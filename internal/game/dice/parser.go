package dice

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Expression is a parsed dice expression such as "1d100" or "2d6+3".
type Expression struct {
	Raw      string
	Count    int
	Sides    int
	Modifier int
}

// Min returns the smallest total the expression can roll.
func (e Expression) Min() int { return e.Count + e.Modifier }

// Max returns the largest total the expression can roll.
func (e Expression) Max() int { return e.Count*e.Sides + e.Modifier }

var exprPattern = regexp.MustCompile(`^(\d*)d(\d+)([+-]\d+)?$`)

// Parse parses "NdS", "dS" or "NdS±M".
//
// Postcondition: On success Count >= 1 and Sides >= 2.
func Parse(raw string) (Expression, error) {
	m := exprPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
	if m == nil {
		return Expression{}, fmt.Errorf("dice: malformed expression %q", raw)
	}
	count := 1
	if m[1] != "" {
		count, _ = strconv.Atoi(m[1])
	}
	if count < 1 {
		return Expression{}, fmt.Errorf("dice: die count in %q must be >= 1", raw)
	}
	sides, err := strconv.Atoi(m[2])
	if err != nil || sides < 2 {
		return Expression{}, fmt.Errorf("dice: die sides in %q must be >= 2", raw)
	}
	mod := 0
	if m[3] != "" {
		mod, err = strconv.Atoi(m[3])
		if err != nil {
			return Expression{}, fmt.Errorf("dice: invalid modifier in %q: %w", raw, err)
		}
	}
	return Expression{Raw: raw, Count: count, Sides: sides, Modifier: mod}, nil
}

// MustParse parses expr and panics on error.
func MustParse(expr string) Expression {
	e, err := Parse(expr)
	if err != nil {
		panic(err.Error())
	}
	return e
}
