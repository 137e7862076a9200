package ports

import "go.trai.ch/kiln/internal/core/domain"

// OutputStore records the files written by pipeline tasks.
//
//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks
type OutputStore interface {
	// Get returns the record for a project relative path.
	// Returns nil, nil if not found.
	Get(root, path string) (*domain.OutputRecord, error)

	// Put stores the record and reports whether the contents changed since the previous write.
	Put(root string, rec domain.OutputRecord) (changed bool, err error)

	// All returns every record sorted by path.
	All(root string) ([]domain.OutputRecord, error)

	// Delete removes the record for path.
	Delete(root, path string) error
}
