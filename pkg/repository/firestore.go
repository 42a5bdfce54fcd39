package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/brewie/voicegate/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const collectionCycles = "cycles"

// Firestore stores cycles in a Firestore collection
type Firestore struct {
	client *firestore.Client
}

func NewFirestore(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID))
	}

	return &Firestore{client: client}, nil
}

func (f *Firestore) PutCycle(ctx context.Context, cycle *model.Cycle) error {
	if cycle.ID == "" {
		return goerr.New("cycle ID is empty")
	}

	if _, err := f.client.Collection(collectionCycles).Doc(string(cycle.ID)).Set(ctx, cycle); err != nil {
		return goerr.Wrap(err, "failed to put cycle", goerr.V("cycle_id", cycle.ID))
	}
	return nil
}

func (f *Firestore) GetCycle(ctx context.Context, id model.CycleID) (*model.Cycle, error) {
	doc, err := f.client.Collection(collectionCycles).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "no such cycle", goerr.V("cycle_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get cycle", goerr.V("cycle_id", id))
	}

	var cycle model.Cycle
	if err := doc.DataTo(&cycle); err != nil {
		return nil, goerr.Wrap(err, "failed to decode cycle", goerr.V("cycle_id", id))
	}
	return &cycle, nil
}

func (f *Firestore) ListCycles(ctx context.Context, offset, limit int) ([]*model.Cycle, error) {
	query := f.client.Collection(collectionCycles).OrderBy("created_at", firestore.Desc)
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var cycles []*model.Cycle
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate cycles")
		}

		var cycle model.Cycle
		if err := doc.DataTo(&cycle); err != nil {
			return nil, goerr.Wrap(err, "failed to decode cycle", goerr.V("doc_id", doc.Ref.ID))
		}
		cycles = append(cycles, &cycle)
	}

	return cycles, nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}
