package sensor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tauronsensor/tauronsensor/pkg/aggregate"
	"github.com/tauronsensor/tauronsensor/pkg/log"
	"github.com/tauronsensor/tauronsensor/pkg/tauron"
	"github.com/tauronsensor/tauronsensor/pkg/types"
)

// ErrInvalidAuth is returned when credentials are rejected by the portal.
var ErrInvalidAuth = errors.New("invalid_auth")

// Portal is the subset of the portal client used by the Service.
type Portal interface {
	Login(ctx context.Context) bool
	FetchDailySeries(ctx context.Context, start, end time.Time) (types.RawSeries, error)
}

// Service is what the embedding process talks to: a credential check and a
// per-poll fetch that yields a fresh snapshot or nothing.
type Service struct {
	portal Portal
}

// NewService returns a Service on top of portal.
func NewService(portal Portal) *Service {
	return &Service{portal: portal}
}

// Login validates the configured credentials against the portal.
func (s *Service) Login(ctx context.Context) bool {
	return s.portal.Login(ctx)
}

// Report fetches yesterday-to-today series and aggregates them.
func (s *Service) Report(ctx context.Context) (types.Report, error) {
	series, err := s.portal.FetchDailySeries(ctx, time.Time{}, time.Time{})
	if err != nil {
		return types.Report{}, err
	}
	return aggregate.Aggregate(series.Consumption, series.Production), nil
}

// GetSensorsData returns a new snapshot, or nil when nothing could be fetched
// this cycle. Callers keep their previous snapshot on nil.
func (s *Service) GetSensorsData(ctx context.Context) *types.Snapshot {
	report, err := s.Report(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get sensors data", slog.Any("error", err))
		return nil
	}
	snap := BuildSnapshot(report)
	return &snap
}

// ValidateCredentials performs a fresh login with the given credentials, the
// way a setup form checks them before saving. The returned title names the
// account.
func ValidateCredentials(ctx context.Context, baseURL, username, password string, timeout time.Duration) (string, error) {
	if username == "" || password == "" {
		return "", ErrInvalidAuth
	}
	c := tauron.NewClient(baseURL, username, password, timeout)
	if !c.Login(ctx) {
		return "", ErrInvalidAuth
	}
	return "Tauron (" + username + ")", nil
}
