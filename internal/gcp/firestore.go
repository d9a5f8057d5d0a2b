package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/Lllllllleong/documentpacker/internal/models"
)

// Pack record statuses.
const (
	StatusPacking = "PACKING"
	StatusPacked  = "PACKED"
	StatusFailed  = "FAILED"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return client, nil
}

// PackRecords stores one document per pack run.
type PackRecords struct {
	col *firestore.CollectionRef
}

func NewPackRecords(client *firestore.Client, collection string) *PackRecords {
	return &PackRecords{col: client.Collection(collection)}
}

// FindPacked returns a finished run for batchHash, or nil when none exists.
func (p *PackRecords) FindPacked(ctx context.Context, batchHash string) (*firestore.DocumentSnapshot, error) {
	docs, err := p.col.
		Where("batchHash", "==", batchHash).
		Where("status", "==", StatusPacked).
		Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query for duplicates: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

// Create adds a new run record.
func (p *PackRecords) Create(ctx context.Context, rec models.PackRecord) (*firestore.DocumentRef, error) {
	ref, _, err := p.col.Add(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to create pack record: %w", err)
	}
	return ref, nil
}

// UpdateStatus sets status and, when non-empty, errorDetails.
func (p *PackRecords) UpdateStatus(ctx context.Context, ref *firestore.DocumentRef, status, errDetails string) error {
	updates := []firestore.Update{{Path: "status", Value: status}}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: errDetails})
	}
	_, err := ref.Update(ctx, updates)
	return err
}

// Complete marks a run PACKED and stores its outputs.
func (p *PackRecords) Complete(ctx context.Context, ref *firestore.DocumentRef, archiveURI, manifestURI string, items []models.ItemUpdate) error {
	_, err := ref.Update(ctx, []firestore.Update{
		{Path: "status", Value: StatusPacked},
		{Path: "archiveUri", Value: archiveURI},
		{Path: "manifestUri", Value: manifestURI},
		{Path: "items", Value: items},
	})
	if err != nil {
		return fmt.Errorf("failed to complete pack record: %w", err)
	}
	return nil
}
