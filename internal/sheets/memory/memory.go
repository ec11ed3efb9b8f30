// Package memory is an in-process TransactionExporter for development and
// tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"finboard/internal/core"
	ports "finboard/internal/sheets"
)

type Exporter struct {
	mu   sync.Mutex
	rows [][]any
}

var _ ports.TransactionExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

// Export records the rows and returns a synthetic range reference.
func (e *Exporter) Export(_ context.Context, txs []core.Transaction) (string, error) {
	if len(txs) == 0 {
		return "", nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	first := len(e.rows) + 1
	e.rows = append(e.rows, ports.Rows(txs)...)
	return fmt.Sprintf("mem:%d-%d", first, len(e.rows)), nil
}

// Rows returns a copy of everything exported so far.
func (e *Exporter) Rows() [][]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]any(nil), e.rows...)
}
