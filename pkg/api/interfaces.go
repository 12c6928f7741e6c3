// Package api provides interfaces for dependency injection
package api

import (
	"context"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/biocoder/pkg/coder"
	"github.com/ssargent/biocoder/pkg/storage"
	"github.com/ssargent/biocoder/pkg/symbol"
)

// IStreamStore defines the stream catalog operations the API uses
type IStreamStore interface {
	CreateStream(name string, cfg coder.Config) (*storage.Stream, error)
	GetStream(id ksuid.KSUID) (*storage.Stream, error)
	ListStreams() ([]*storage.Stream, error)
}

// IStreamCoder defines the stateful coding of stored streams
type IStreamCoder interface {
	AppendFrames(id ksuid.KSUID, frames [][]symbol.Symbol) ([]coder.Stats, error)
	ReadFrames(id ksuid.KSUID, from uint64) ([][]symbol.Symbol, error)
	DeleteStream(id ksuid.KSUID) error
}

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer serves until ctx is cancelled or the listener fails
	StartServer(ctx context.Context, streams *storage.StreamCoder, config ServerConfig) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}

// StoreFactory opens stream stores
type StoreFactory interface {
	// OpenStreamStore opens the store at path
	OpenStreamStore(path string) (*storage.StreamStore, error)
}
