// Package util provides the argument cleaning and parsing helpers shared by
// the command handlers and the CLI.
package util

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lineupkit/tacticboard/pkg/core"
)

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArgs trims whitespace and surrounding quotes from every argument and
// unescapes doubled quotes. The input slice is not modified.
func CleanArgs(args []string) []string {
	out := make([]string, len(args))
	for i, v := range args {
		out[i] = FixEscapeQuotes(TrimQuotes(strings.TrimSpace(v)))
	}
	return out
}

// ParseInt parses a decimal integer argument. Float spellings such as "3.0"
// are accepted when they hold a whole number.
func ParseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}

// ParseFloat parses a finite float argument. NaN and infinities are
// rejected.
func ParseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}

// ParseBool accepts true/false, 1/0 and yes/no in any case.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("not a boolean: %q", s)
	}
}

// ParseSeeds parses a base formation given as [[slot,x,y],...].
func ParseSeeds(s string) ([]core.SeedPosition, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var raw [][]float64
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("invalid seed list: %w", err)
	}
	out := make([]core.SeedPosition, 0, len(raw))
	for i, r := range raw {
		if len(r) != 3 {
			return nil, fmt.Errorf("seed %d: want [slot,x,y], got %d values", i, len(r))
		}
		if r[0] != float64(int(r[0])) {
			return nil, fmt.Errorf("seed %d: slot id %v is not an integer", i, r[0])
		}
		out = append(out, core.SeedPosition{SlotID: int(r[0]), X: r[1], Y: r[2]})
	}
	return out, nil
}

// ParsePoints parses a stroke path given as [[x,y],...].
func ParsePoints(s string) ([]core.Point, error) {
	var raw [][]float64
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &raw); err != nil {
		return nil, fmt.Errorf("invalid point list: %w", err)
	}
	out := make([]core.Point, 0, len(raw))
	for i, r := range raw {
		if len(r) != 2 {
			return nil, fmt.Errorf("point %d: want [x,y], got %d values", i, len(r))
		}
		out = append(out, core.Point{X: r[0], Y: r[1]})
	}
	return out, nil
}

// RequireArgs returns an error when fewer than n arguments were given.
func RequireArgs(args []string, n int) error {
	if len(args) < n {
		return fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}
	return nil
}
