package types

import (
	"fmt"
	"math"
)

// WeightClass controls how often a field is repeated in a record's weighted text.
// Fields in WeightClassExclude never reach the text at all.
type WeightClass string

const (
	WeightClassTriple  WeightClass = "3.0"
	WeightClassDouble  WeightClass = "2.0"
	WeightClassSingle  WeightClass = "1.0"
	WeightClassHalf    WeightClass = "0.5"
	WeightClassExclude WeightClass = "exclude"
)

// AllWeightClasses returns all valid weight classes from heaviest to lightest
func AllWeightClasses() []WeightClass {
	return []WeightClass{
		WeightClassTriple,
		WeightClassDouble,
		WeightClassSingle,
		WeightClassHalf,
		WeightClassExclude,
	}
}

// IsValid checks if the weight class is valid
func (w WeightClass) IsValid() bool {
	switch w {
	case WeightClassTriple,
		WeightClassDouble,
		WeightClassSingle,
		WeightClassHalf,
		WeightClassExclude:
		return true
	default:
		return false
	}
}

// Weight returns the numeric multiplier of the class
func (w WeightClass) Weight() float64 {
	switch w {
	case WeightClassTriple:
		return 3.0
	case WeightClassDouble:
		return 2.0
	case WeightClassSingle:
		return 1.0
	case WeightClassHalf:
		return 0.5
	default:
		return 0
	}
}

// Repeat returns how many times a non-empty field of this class is written.
// Classes below 1.0 are still written once; excluded fields are never written.
func (w WeightClass) Repeat() int {
	if w == WeightClassExclude || !w.IsValid() {
		return 0
	}
	n := int(math.Floor(w.Weight()))
	if n < 1 {
		return 1
	}
	return n
}

// String returns the string representation of the weight class
func (w WeightClass) String() string {
	return string(w)
}

// ParseWeightClass parses a string into a WeightClass
func ParseWeightClass(s string) (WeightClass, error) {
	wc := WeightClass(s)
	if !wc.IsValid() {
		return "", fmt.Errorf("invalid weight class: %s", s)
	}
	return wc, nil
}
