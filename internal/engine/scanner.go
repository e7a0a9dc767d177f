package engine

import (
	"math"

	"github.com/jcbtech1/AEGIS-TACTICAL-GRID/internal/domain/detection"
)

// FaceScanner simulates the camera-side face recognition check.
type FaceScanner struct {
	threshold float64
}

// NewFaceScanner creates a face scanner gated at threshold.
func NewFaceScanner(threshold float64) *FaceScanner {
	return &FaceScanner{threshold: threshold}
}

// Scan draws the gate value and, when it exceeds the threshold, an identity and a confidence.
func (s *FaceScanner) Scan(src Source) (detection.FaceDetection, bool) {
	if src.Float64() <= s.threshold {
		return detection.FaceDetection{}, false
	}

	n := detection.IdentityMin + src.IntN(detection.IdentityMax-detection.IdentityMin+1)

	score := detection.ConfidenceMin + src.Float64()*(detection.ConfidenceMax-detection.ConfidenceMin)
	if score >= detection.ConfidenceMax {
		// Float rounding can land exactly on the open bound.
		score = math.Nextafter(detection.ConfidenceMax, detection.ConfidenceMin)
	}

	return detection.NewFaceDetection(n, score), true
}

// ThreatScanner simulates the network anomaly check.
type ThreatScanner struct {
	threshold float64
	vectors   []detection.Vector
}

// NewThreatScanner creates a threat scanner gated at threshold, picking from vectors.
func NewThreatScanner(threshold float64, vectors []detection.Vector) *ThreatScanner {
	return &ThreatScanner{threshold: threshold, vectors: vectors}
}

// Scan draws the gate value and, when it exceeds the threshold, a vector.
func (s *ThreatScanner) Scan(src Source) (detection.ThreatDetection, bool) {
	if src.Float64() <= s.threshold {
		return detection.ThreatDetection{}, false
	}
	v := s.vectors[src.IntN(len(s.vectors))]
	return detection.NewThreatDetection(v), true
}
