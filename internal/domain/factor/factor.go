// Package factor holds named, weighted score contributions and the clamping
// helpers the calculators share.
//
// A Set keeps contributions in insertion order so a computed score can be
// replayed line by line. Additive contributions are bounded by [0, Max];
// penalties are tracked separately and may only pull the total down.
package factor

import (
	"fmt"
	"math"
)

// Name identifies one factor. The set of names is closed; calculators
// declare their own constants of this type.
type Name string

// Kind separates bounded additive factors from unbounded penalties.
type Kind string

const (
	// KindBase is the fixed offset every score starts from.
	KindBase Kind = "base"
	// KindAdditive contributions lie in [0, Max].
	KindAdditive Kind = "additive"
	// KindPenalty contributions are <= 0 and have no lower bound.
	KindPenalty Kind = "penalty"
)

// Contribution is one line of a score explanation. Raw carries the input the
// factor was derived from (a number, a bool, or nil when the fact was
// unknown).
type Contribution struct {
	Name    Name    `json:"name"`
	Kind    Kind    `json:"kind"`
	Raw     any     `json:"raw_value"`
	Awarded float64 `json:"awarded_score"`
	Max     float64 `json:"max_score"`
}

// Set is an ordered collection of contributions. The zero value is ready to use.
type Set struct {
	items []Contribution
}

// Base records the fixed starting offset.
func (s *Set) Base(name Name, value float64) error {
	return s.add(Contribution{Name: name, Kind: KindBase, Raw: value, Awarded: value, Max: value})
}

// Additive records a bounded contribution. The awarded value is clamped into
// [0, max] before it is stored so callers can pass a raw formula result.
func (s *Set) Additive(name Name, raw any, awarded, maxScore float64) error {
	if maxScore < 0 || math.IsNaN(maxScore) {
		return fmt.Errorf("%w: %s has negative max %v", ErrOutOfRange, name, maxScore)
	}
	if math.IsNaN(awarded) {
		return fmt.Errorf("%w: %s awarded NaN", ErrOutOfRange, name)
	}
	return s.add(Contribution{Name: name, Kind: KindAdditive, Raw: raw, Awarded: Clamp(awarded, 0, maxScore), Max: maxScore})
}

// Penalty records an unbounded negative contribution. A positive value is a
// caller bug and is rejected rather than silently flipped.
func (s *Set) Penalty(name Name, raw any, awarded float64) error {
	if awarded > 0 || math.IsNaN(awarded) {
		return fmt.Errorf("%w: penalty %s must be <= 0, got %v", ErrOutOfRange, name, awarded)
	}
	return s.add(Contribution{Name: name, Kind: KindPenalty, Raw: raw, Awarded: awarded, Max: 0})
}

func (s *Set) add(c Contribution) error {
	if c.Name == "" {
		return ErrEmptyName
	}
	for _, existing := range s.items {
		if existing.Name == c.Name {
			return fmt.Errorf("%w: %s", ErrDuplicate, c.Name)
		}
	}
	s.items = append(s.items, c)
	return nil
}

// Items returns a copy of the contributions in insertion order.
func (s *Set) Items() []Contribution {
	out := make([]Contribution, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of recorded contributions.
func (s *Set) Len() int { return len(s.items) }

// Get looks a contribution up by name.
func (s *Set) Get(name Name) (Contribution, bool) {
	for _, c := range s.items {
		if c.Name == name {
			return c, true
		}
	}
	return Contribution{}, false
}

// Sum adds every contribution, base and penalties included. It is not clamped.
func (s *Set) Sum() float64 {
	var total float64
	for _, c := range s.items {
		total += c.Awarded
	}
	return total
}

// SumKind adds only the contributions of the given kind.
func (s *Set) SumKind(kind Kind) float64 {
	var total float64
	for _, c := range s.items {
		if c.Kind == kind {
			total += c.Awarded
		}
	}
	return total
}

// Clamp bounds v to [lo, hi]. NaN collapses to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// ClampInt bounds v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
