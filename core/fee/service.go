package fee

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNoConfig         = errors.New("fee schedule not configured")
	ErrClosed           = errors.New("admissions closed")
	ErrOverrideNotFound = errors.New("category fee not configured")
	ErrInvalidDeadlines = errors.New("deadlines must be strictly increasing")
)

type (
	Repository interface {
		// GetSchedule fails with ErrNoConfig when class has no schedule.
		GetSchedule(ctx context.Context, class string) (Schedule, error)
		QuerySchedules(ctx context.Context) ([]Schedule, error)
		// SaveSchedule creates or replaces the schedule of sched.Class.
		SaveSchedule(ctx context.Context, sched Schedule) (Schedule, error)
		// GetOverride fails with ErrOverrideNotFound when no row matches.
		GetOverride(ctx context.Context, scheduleID int, category string) (CategoryOverride, error)
		QueryOverrides(ctx context.Context, scheduleID int) ([]CategoryOverride, error)
		SaveOverride(ctx context.Context, ovr CategoryOverride) (CategoryOverride, error)
	}

	Service struct {
		repo    Repository
		nowFunc func() time.Time
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo, nowFunc: time.Now}
}

// Quote resolves the fee of (class, category) on asOf, reading the schedule and its category override.
// A missing override falls back to the flat fees.
func (svc *Service) Quote(ctx context.Context, class, category string, asOf time.Time) (Quote, error) {
	sched, err := svc.repo.GetSchedule(ctx, class)
	if err != nil {
		return Quote{}, err
	}

	var override *CategoryOverride
	if category != "" {
		ovr, err := svc.repo.GetOverride(ctx, sched.ID, category)
		switch {
		case err == nil:
			override = &ovr
		case errors.Cause(err) != ErrOverrideNotFound:
			return Quote{}, errors.Wrap(err, "getting category fee")
		}
	}
	return Resolve(sched, override, asOf)
}

// QuoteNow is Quote as of today.
func (svc *Service) QuoteNow(ctx context.Context, class, category string) (Quote, error) {
	return svc.Quote(ctx, class, category, svc.nowFunc())
}

func (svc *Service) Schedule(ctx context.Context, class string) (Schedule, error) {
	return svc.repo.GetSchedule(ctx, class)
}

func (svc *Service) Schedules(ctx context.Context) ([]Schedule, error) {
	return svc.repo.QuerySchedules(ctx)
}

func (svc *Service) CategoryFees(ctx context.Context, class string) ([]CategoryOverride, error) {
	sched, err := svc.repo.GetSchedule(ctx, class)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryOverrides(ctx, sched.ID)
}

// Configure saves a validated schedule (see ScheduleInput.Validate).
func (svc *Service) Configure(ctx context.Context, sched Schedule) (Schedule, error) {
	if err := sched.checkDeadlines(); err != nil {
		return Schedule{}, err
	}
	now := svc.nowFunc().UTC()
	sched.UpdatedAt = now
	if sched.CreatedAt.IsZero() {
		sched.CreatedAt = now
	}
	return svc.repo.SaveSchedule(ctx, sched)
}

// SetCategoryFees creates or replaces the override of category on the class schedule.
func (svc *Service) SetCategoryFees(ctx context.Context, class, category string, fees Fees) (CategoryOverride, error) {
	sched, err := svc.repo.GetSchedule(ctx, class)
	if err != nil {
		return CategoryOverride{}, err
	}
	now := svc.nowFunc().UTC()
	return svc.repo.SaveOverride(ctx, CategoryOverride{
		ScheduleID: sched.ID,
		Category:   category,
		Fees:       fees,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}
