// Package engine contains the simulated detection loop.
// This is the heartbeat of the Aegis intelligence core.
//
// Each iteration draws two independent uniform values from a Source. A face
// match is emitted when the first exceeds FaceThreshold and a network threat
// when the second exceeds ThreatThreshold. Results are handed to Sinks; the
// engine itself performs no I/O.
//
// Draw order per iteration: face gate, then identity and confidence if the
// gate opened, then threat gate, then vector index if that gate opened.
package engine
