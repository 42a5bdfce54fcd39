package model

// Segment is one scored window of the voice verifier output
type Segment struct {
	Time  float64
	Score float64
}

// Authorization is the privilege decision for one plan. It is never persisted
// beyond the audit record of its cycle.
type Authorization struct {
	Verified bool
	Score    float64

	// Checked is true when the biometric verifier actually ran
	Checked bool
}

// AutoAuthorized is the decision for plans without privileged commands
func AutoAuthorized() Authorization {
	return Authorization{Verified: true, Score: 1.0}
}
