package model

import (
	"time"

	"github.com/google/uuid"
)

type CycleID string

// NewCycleID generates a new unique CycleID
func NewCycleID() CycleID {
	return CycleID(uuid.New().String())
}

// Outcome is how a dispatch cycle ended
type Outcome string

const (
	OutcomeDispatched    Outcome = "dispatched"
	OutcomeRequestFailed Outcome = "request_failed"
	OutcomeDecodeFailed  Outcome = "decode_failed"
	OutcomeNotRecognized Outcome = "not_recognized"
)

// CommandOutcome records what happened to a single command
type CommandOutcome struct {
	Tool       string `json:"tool" firestore:"tool"`
	Privileged bool   `json:"privileged" firestore:"privileged"`
	Executed   bool   `json:"executed" firestore:"executed"`
	Denied     bool   `json:"denied" firestore:"denied"`
	Result     string `json:"result,omitempty" firestore:"result"`
	Error      string `json:"error,omitempty" firestore:"error"`
}

// Cycle is the audit record of one wake-word to feedback cycle
type Cycle struct {
	ID         CycleID          `json:"id" firestore:"id"`
	Transcript string           `json:"transcript" firestore:"transcript"`
	Answer     string           `json:"answer" firestore:"answer"`
	Outcome    Outcome          `json:"outcome" firestore:"outcome"`
	Commands   []CommandOutcome `json:"commands" firestore:"commands"`
	Verified   bool             `json:"verified" firestore:"verified"`
	Checked    bool             `json:"checked" firestore:"checked"`
	Score      float64          `json:"score" firestore:"score"`
	CreatedAt  time.Time        `json:"created_at" firestore:"created_at"`
}

// Denied reports whether any command of the cycle was refused
func (c *Cycle) Denied() bool {
	for _, cmd := range c.Commands {
		if cmd.Denied {
			return true
		}
	}
	return false
}
