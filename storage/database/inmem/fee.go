package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/admissions/core/fee"
)

type feeRepository struct {
	db *DB
}

var _ fee.Repository = (*feeRepository)(nil)

func NewFeeRepository(db *DB) fee.Repository {
	return &feeRepository{db: db}
}

func (repo *feeRepository) GetSchedule(_ context.Context, class string) (fee.Schedule, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.schedules[class]; ok {
		return *s, nil
	}
	return fee.Schedule{}, fee.ErrNoConfig
}

func (repo *feeRepository) QuerySchedules(_ context.Context) ([]fee.Schedule, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	scheds := make([]fee.Schedule, 0, len(repo.db.schedules))
	for _, s := range repo.db.schedules {
		scheds = append(scheds, *s)
	}
	sort.Slice(scheds, func(i, j int) bool { return scheds[i].Class < scheds[j].Class })
	return scheds, nil
}

func (repo *feeRepository) SaveSchedule(_ context.Context, sched fee.Schedule) (fee.Schedule, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if orig, ok := repo.db.schedules[sched.Class]; ok {
		sched.ID = orig.ID
		sched.CreatedAt = orig.CreatedAt
	} else {
		sched.ID = repo.db.nextPK("fee_schedules")
	}
	repo.db.schedules[sched.Class] = &sched
	return sched, nil
}

func (repo *feeRepository) GetOverride(_ context.Context, scheduleID int, category string) (fee.CategoryOverride, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if ovr, ok := repo.db.overrides[scheduleID][category]; ok {
		return *ovr, nil
	}
	return fee.CategoryOverride{}, fee.ErrOverrideNotFound
}

func (repo *feeRepository) QueryOverrides(_ context.Context, scheduleID int) ([]fee.CategoryOverride, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ovrs := make([]fee.CategoryOverride, 0, len(repo.db.overrides[scheduleID]))
	for _, ovr := range repo.db.overrides[scheduleID] {
		ovrs = append(ovrs, *ovr)
	}
	sort.Slice(ovrs, func(i, j int) bool { return ovrs[i].Category < ovrs[j].Category })
	return ovrs, nil
}

func (repo *feeRepository) SaveOverride(_ context.Context, ovr fee.CategoryOverride) (fee.CategoryOverride, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	byCat, ok := repo.db.overrides[ovr.ScheduleID]
	if !ok {
		byCat = make(map[string]*fee.CategoryOverride)
		repo.db.overrides[ovr.ScheduleID] = byCat
	}
	if orig, ok := byCat[ovr.Category]; ok {
		ovr.ID = orig.ID
		ovr.CreatedAt = orig.CreatedAt
	} else {
		ovr.ID = repo.db.nextPK("fee_category_overrides")
	}
	byCat[ovr.Category] = &ovr
	return ovr, nil
}
