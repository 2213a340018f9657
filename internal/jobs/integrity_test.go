package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dealersight/credential-server-go/internal/model"
)

type mockScanner struct {
	calls   atomic.Int64
	autoFix atomic.Bool
}

func (m *mockScanner) ScanAll(ctx context.Context, autoFix bool) (*model.IntegrityReport, error) {
	m.calls.Add(1)
	m.autoFix.Store(autoFix)
	return &model.IntegrityReport{TotalConnections: 3, ValidConnections: 3}, nil
}

func TestIntegrityJob(t *testing.T) {
	t.Run("creates job with correct interval", func(t *testing.T) {
		job := NewIntegrityJob(&mockScanner{}, 5*time.Minute, false)

		assert.NotNil(t, job)
		assert.Equal(t, 5*time.Minute, job.interval)
	})

	t.Run("runs a scan on start", func(t *testing.T) {
		auditor := &mockScanner{}
		job := NewIntegrityJob(auditor, 1*time.Hour, false)

		job.Start()
		time.Sleep(20 * time.Millisecond)
		job.Stop()

		assert.GreaterOrEqual(t, auditor.calls.Load(), int64(1))
		assert.False(t, auditor.autoFix.Load())
	})

	t.Run("passes autofix through", func(t *testing.T) {
		auditor := &mockScanner{}
		job := NewIntegrityJob(auditor, 1*time.Hour, true)

		job.Start()
		time.Sleep(20 * time.Millisecond)
		job.Stop()

		assert.True(t, auditor.autoFix.Load())
	})

	t.Run("starts and stops without panic", func(t *testing.T) {
		job := NewIntegrityJob(&mockScanner{}, 100*time.Millisecond, false)

		job.Start()
		time.Sleep(50 * time.Millisecond)
		job.Stop()
	})
}
