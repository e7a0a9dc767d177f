// Package detection defines the synthetic detection records produced by the intel loop.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package detection

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Identity synthesis: "ID_" + 4 random digits + "_SECURE".
const (
	IdentityPrefix = "ID_"
	IdentitySuffix = "_SECURE"
	IdentityMin    = 1000 // Inclusive
	IdentityMax    = 9999 // Inclusive
)

// Confidence range for simulated face matches, in percent.
const (
	ConfidenceMin = 85.0 // Inclusive
	ConfidenceMax = 99.0 // Exclusive
)

var (
	ErrInvalidIdentity   = errors.New("detection: invalid identity")
	ErrInvalidConfidence = errors.New("detection: confidence out of range")
	ErrUnknownVector     = errors.New("detection: unknown threat vector")
	ErrInvalidSeverity   = errors.New("detection: invalid severity")
)

var identityPattern = regexp.MustCompile(`^ID_\d{4}_SECURE$`)

// FaceDetection is a simulated facial identification.
type FaceDetection struct {
	Identity   string  `json:"identity"`
	Confidence string  `json:"confidence"` // "93.17%"
	Score      float64 `json:"score"`      // Raw value behind Confidence
}

// NewFaceDetection builds a face record from a numeric identity and a raw confidence score.
func NewFaceDetection(n int, score float64) FaceDetection {
	return FaceDetection{
		Identity:   IdentityPrefix + strconv.Itoa(n) + IdentitySuffix,
		Confidence: FormatConfidence(score),
		Score:      score,
	}
}

// FormatConfidence renders a score with two decimals and a trailing percent sign.
func FormatConfidence(score float64) string {
	return fmt.Sprintf("%.2f%%", score)
}

// Validate checks the identity pattern and the confidence range.
func (f FaceDetection) Validate() error {
	if !identityPattern.MatchString(f.Identity) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentity, f.Identity)
	}
	if f.Score < ConfidenceMin || f.Score >= ConfidenceMax {
		return fmt.Errorf("%w: %.4f", ErrInvalidConfidence, f.Score)
	}
	if f.Confidence != FormatConfidence(f.Score) {
		return fmt.Errorf("%w: label %q does not match score %.4f", ErrInvalidConfidence, f.Confidence, f.Score)
	}
	return nil
}

// Vector is a simulated network attack label.
type Vector string

const (
	VectorSynFlood        Vector = "SYN_FLOOD"
	VectorSQLInjection    Vector = "SQL_INJECTION"
	VectorMalformedPacket Vector = "MALFORMED_PACKET"
)

// Vectors is the fixed threat database sampled by the intel loop.
var Vectors = []Vector{
	VectorSynFlood,
	VectorSQLInjection,
	VectorMalformedPacket,
}

// IsKnown reports whether v belongs to Vectors.
func (v Vector) IsKnown() bool {
	for _, known := range Vectors {
		if v == known {
			return true
		}
	}
	return false
}

// SeverityHigh is the only severity the loop ever reports.
const SeverityHigh = "HIGH"

// ThreatDetection is a simulated network threat.
type ThreatDetection struct {
	Vector   Vector `json:"vector"`
	Severity string `json:"severity"`
}

// NewThreatDetection builds a threat record for v.
func NewThreatDetection(v Vector) ThreatDetection {
	return ThreatDetection{Vector: v, Severity: SeverityHigh}
}

// Validate checks the vector against the known set and the constant severity.
func (t ThreatDetection) Validate() error {
	if !t.Vector.IsKnown() {
		return fmt.Errorf("%w: %q", ErrUnknownVector, t.Vector)
	}
	if t.Severity != SeverityHigh {
		return fmt.Errorf("%w: %q", ErrInvalidSeverity, t.Severity)
	}
	return nil
}
