// Package api provides factory implementations for dependency injection
package api

import (
	"context"

	"github.com/ssargent/biocoder/pkg/storage"
)

// DefaultServerFactory is the default implementation of ServerFactory
type DefaultServerFactory struct{}

// NewServerFactory creates a new server factory
func NewServerFactory() ServerFactory {
	return &DefaultServerFactory{}
}

// CreateServerStarter creates a server starter
func (f *DefaultServerFactory) CreateServerStarter() ServerStarter {
	return &DefaultServerStarter{}
}

// DefaultServerStarter is the default implementation of ServerStarter
type DefaultServerStarter struct{}

// StartServer starts the API server with the given configuration
func (s *DefaultServerStarter) StartServer(ctx context.Context, streams *storage.StreamCoder, config ServerConfig) error {
	return Serve(ctx, streams, config)
}

// DefaultStoreFactory is the default implementation of StoreFactory
type DefaultStoreFactory struct{}

// NewStoreFactory creates a new store factory
func NewStoreFactory() StoreFactory {
	return &DefaultStoreFactory{}
}

// OpenStreamStore opens the pebble stream store at path
func (f *DefaultStoreFactory) OpenStreamStore(path string) (*storage.StreamStore, error) {
	return storage.NewStreamStore(path)
}
