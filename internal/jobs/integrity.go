package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dealersight/credential-server-go/internal/config"
	"github.com/dealersight/credential-server-go/internal/model"
)

type scanner interface {
	ScanAll(ctx context.Context, autoFix bool) (*model.IntegrityReport, error)
}

// IntegrityJob runs the connection integrity sweep on a fixed interval.
type IntegrityJob struct {
	auditor  scanner
	interval time.Duration
	autoFix  bool
	done     chan struct{}
}

func NewIntegrityJob(auditor scanner, interval time.Duration, autoFix bool) *IntegrityJob {
	return &IntegrityJob{
		auditor:  auditor,
		interval: interval,
		autoFix:  autoFix,
		done:     make(chan struct{}),
	}
}

func (j *IntegrityJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Bool("autofix", j.autoFix).Msg("integrity job started")
}

func (j *IntegrityJob) Stop() {
	close(j.done)
	log.Info().Msg("integrity job stopped")
}

func (j *IntegrityJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.scan()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.scan()
		}
	}
}

func (j *IntegrityJob) scan() {
	ctx, cancel := context.WithTimeout(context.Background(), config.IntegrityScanTimeout)
	defer cancel()

	report, err := j.auditor.ScanAll(ctx, j.autoFix)
	if err != nil {
		log.Error().Err(err).Msg("scheduled integrity scan failed")
		return
	}

	event := log.Info()
	if report.InvalidConnections > 0 {
		event = log.Warn()
	}
	event.
		Int("total", report.TotalConnections).
		Int("valid", report.ValidConnections).
		Int("invalid", report.InvalidConnections).
		Int("cleaned", report.CleanedUpConnections).
		Int("unclassified", report.UnclassifiedCount).
		Msg("scheduled integrity scan finished")
}
