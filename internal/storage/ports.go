package storage

import (
	"context"

	"survey/internal/core"
)

// Ports implemented by every response store.
type (
	// ResponseWriter persists a new response and returns the id the store
	// assigned to it.
	ResponseWriter interface {
		Insert(ctx context.Context, r core.Record) (id string, err error)
	}

	// ResponseLister returns every stored response as a raw document, in
	// insertion order. Decoding and validation are left to the caller.
	ResponseLister interface {
		ListDocuments(ctx context.Context) ([]core.Document, error)
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}

	Repository interface {
		ResponseWriter
		ResponseLister
		Pinger
		Close() error
	}
)
