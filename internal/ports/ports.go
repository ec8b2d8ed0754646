package ports

import (
	"context"
	"time"

	"timesplit/internal/domain"
)

// TimerSource fetches a day's timers and the projects they can be logged against.
type TimerSource interface {
	DailyTimers(ctx context.Context, date time.Time) (domain.Day, error)
}

// TimerSink persists timers remotely. Create is for timers without an ID,
// Update for timers that already have one.
type TimerSink interface {
	CreateTimer(ctx context.Context, t domain.Timer) (domain.Timer, error)
	UpdateTimer(ctx context.Context, t domain.Timer) (domain.Timer, error)
}

// Authenticator checks that the configured credentials are accepted.
type Authenticator interface {
	WhoAmI(ctx context.Context) (domain.User, error)
}

// ConfigStore loads and saves the user's split configuration.
// LoadConfiguration returns (nil, nil) when nothing has been stored yet and
// an error wrapping domain.ErrCorruptConfiguration when the stored data
// cannot be decoded.
type ConfigStore interface {
	LoadConfiguration(ctx context.Context) (*domain.SplitConfiguration, error)
	SaveConfiguration(ctx context.Context, cfg domain.SplitConfiguration) error
}

// DispatchLog records the outcome of every timer sent during a split run.
type DispatchLog interface {
	RecordDispatches(ctx context.Context, runID string, results []domain.DispatchResult) error
}
