// Package kp decodes planetary K index values and derives their qualitative labels.
package kp

import (
	"math"
	"strconv"
	"strings"
)

// Parse converts the displayed Kp string into a number. NOAA suffixes the value
// with M or Z confidence markers ("5M", "3Z"); those are removed before parsing.
// Empty or unparseable input yields 0.
func Parse(s string) float64 {
	cleaned := strings.TrimSpace(strings.NewReplacer("M", "", "Z", "").Replace(s))
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ActivityLevel is the geomagnetic activity label of an integer Kp index.
type ActivityLevel string

const (
	Calm      ActivityLevel = "calm"
	Unsettled ActivityLevel = "unsettled"
	Active    ActivityLevel = "active"
	Storm     ActivityLevel = "storm"
)

// Level maps an integer Kp index to its activity level.
func Level(kpIndex int) ActivityLevel {
	switch {
	case kpIndex <= 2:
		return Calm
	case kpIndex == 3:
		return Unsettled
	case kpIndex == 4:
		return Active
	default:
		return Storm
	}
}

// ConfidenceLevel qualifies a forecast row by its estimated Kp.
type ConfidenceLevel string

const (
	High   ConfidenceLevel = "high"
	Medium ConfidenceLevel = "medium"
	Low    ConfidenceLevel = "low"
)

// Confidence returns the confidence label of a forecast estimate.
func Confidence(estimatedKp float64) ConfidenceLevel {
	switch {
	case estimatedKp > 0.8:
		return High
	case estimatedKp > 0.5:
		return Medium
	default:
		return Low
	}
}
