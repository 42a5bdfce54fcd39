package repository

import (
	"context"

	"github.com/brewie/voicegate/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// ErrNotFound is returned when a cycle does not exist
var ErrNotFound = goerr.New("cycle not found")

// Repository defines the interface for the cycle audit log
type Repository interface {
	// PutCycle saves the record of one dispatch cycle
	PutCycle(ctx context.Context, cycle *model.Cycle) error

	// GetCycle retrieves a cycle by ID
	GetCycle(ctx context.Context, id model.CycleID) (*model.Cycle, error)

	// ListCycles retrieves cycles, newest first
	ListCycles(ctx context.Context, offset, limit int) ([]*model.Cycle, error)

	Close() error
}
