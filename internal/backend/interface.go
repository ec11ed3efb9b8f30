// Package backend builds the storage and event-publishing backends selected
// by configuration.
package backend

import (
	"context"

	"finboard/internal/amqp"
	"finboard/internal/services"
)

// Store is a services.Store with lifecycle hooks.
type Store interface {
	services.Store
	Ping(ctx context.Context) error
	Close() error
}

type CleanupFunc func() error

// BackendResult holds the created backend. Publisher and AMQP are nil when
// sync events are disabled or the broker could not be reached.
type BackendResult struct {
	Store     Store
	Publisher services.Publisher
	AMQP      *amqp.Client
	Cleanup   CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	SQLiteDBPath string

	// An empty AMQPURL disables sync events.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
