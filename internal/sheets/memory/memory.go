package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"banco/internal/dashboard"
	"banco/internal/sheets"
)

// Store keeps exported KPI rows in process memory.
type Store struct {
	mu   sync.Mutex
	rows []sheets.Row
}

var (
	_ sheets.MetricsExporter = (*Store)(nil)
	_ sheets.MetricsReader   = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

// AppendMetrics stores the row and returns a synthetic row reference.
func (s *Store) AppendMetrics(_ context.Context, at time.Time, m dashboard.Metrics) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, sheets.RowOf(at, m))
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) ReadMetrics(_ context.Context) ([]sheets.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.Row(nil), s.rows...), nil
}
