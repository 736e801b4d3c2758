// Package scheduler runs the periodic delivery status job.
package scheduler

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

type DeliveryUpdater interface {
	UpdateDeliveryStatus(ctx context.Context) (int64, error)
}

// DeliveryScheduler ships pending orders on a cron schedule. Failures are
// logged; there is no caller to return them to.
type DeliveryScheduler struct {
	cron    *cron.Cron
	updater DeliveryUpdater
	timeout time.Duration
}

func NewDeliveryScheduler(spec string, updater DeliveryUpdater, timeout time.Duration) (*DeliveryScheduler, error) {
	s := &DeliveryScheduler{
		cron:    cron.New(),
		updater: updater,
		timeout: timeout,
	}
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DeliveryScheduler) Start() {
	s.cron.Start()
}

// Stop waits for a running job to finish or ctx to expire.
func (s *DeliveryScheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *DeliveryScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Msgf("Delivery status job panicked: %v", r)
		}
	}()

	n, err := s.updater.UpdateDeliveryStatus(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Error updating delivery status")
		return
	}
	logger.Info().Msgf("Marked %d orders as shipped", n)
}
