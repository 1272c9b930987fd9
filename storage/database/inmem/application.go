package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
)

type applicationRepository struct {
	db *DB
}

var _ admission.Repository = (*applicationRepository)(nil)

func NewApplicationRepository(db *DB) admission.Repository {
	return &applicationRepository{db: db}
}

func (repo *applicationRepository) query() []admission.Application {
	apps := make([]admission.Application, 0, len(repo.db.applications))
	for _, app := range repo.db.applications {
		apps = append(apps, *app)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].ID < apps[j].ID })
	return apps
}

func (repo *applicationRepository) rollNumberTaken(rollNo string, exceptID int) bool {
	for _, app := range repo.db.applications {
		if app.ID != exceptID && app.RollNumber == rollNo {
			return true
		}
	}
	return false
}

func (repo *applicationRepository) Create(_ context.Context, app admission.Application) (admission.Application, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if app.RollNumber != "" && repo.rollNumberTaken(app.RollNumber, 0) {
		return admission.Application{}, admission.ErrRollNumberTaken
	}
	app.ID = repo.db.nextPK("applications")
	repo.db.applications[app.ID] = &app
	return app, nil
}

func (repo *applicationRepository) GetByID(_ context.Context, id int, _ ...core.DBExecutor) (admission.Application, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if app, ok := repo.db.applications[id]; ok {
		return *app, nil
	}
	return admission.Application{}, admission.ErrNotFound
}

// GetByIDForUpdate relies on DB.InTx for isolation.
func (repo *applicationRepository) GetByIDForUpdate(ctx context.Context, id int, exec core.DBExecutor) (admission.Application, error) {
	return repo.GetByID(ctx, id, exec)
}

func (repo *applicationRepository) GetByAccount(_ context.Context, accountID int) (admission.Application, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, app := range repo.query() {
		if app.AccountID == accountID {
			return app, nil
		}
	}
	return admission.Application{}, admission.ErrNotFound
}

func (repo *applicationRepository) GetBySecureToken(_ context.Context, token string) (admission.Application, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, app := range repo.query() {
		if token != "" && app.SecureToken == token {
			return app, nil
		}
	}
	return admission.Application{}, admission.ErrNotFound
}

func (repo *applicationRepository) Filter(_ context.Context, filter admission.QueryFilter) ([]admission.Application, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var ids map[int]bool
	if len(filter.IDs) > 0 {
		ids = make(map[int]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = true
		}
	}

	apps := make([]admission.Application, 0)
	for _, app := range repo.query() {
		if (ids == nil || ids[app.ID]) &&
			(filter.Class == "" || app.Class == filter.Class) &&
			(filter.Category == "" || app.Category == filter.Category) &&
			(filter.Status == "" || app.Status == filter.Status) &&
			(filter.TestCenter == "" || app.TestCenter == filter.TestCenter) {
			apps = append(apps, app)
		}
	}
	return apps, nil
}

func (repo *applicationRepository) Update(_ context.Context, app admission.Application, _ ...core.DBExecutor) (admission.Application, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.applications[app.ID]
	if !ok {
		return admission.Application{}, admission.ErrNotFound
	}
	if orig.RollNumber != "" {
		app.RollNumber = orig.RollNumber
	} else if app.RollNumber != "" && repo.rollNumberTaken(app.RollNumber, app.ID) {
		return admission.Application{}, admission.ErrRollNumberTaken
	}
	if orig.SecureToken != "" {
		app.SecureToken = orig.SecureToken
	}
	app.AccountID = orig.AccountID
	app.CreatedAt = orig.CreatedAt
	repo.db.applications[app.ID] = &app
	return app, nil
}

func (repo *applicationRepository) SetArtifactRef(_ context.Context, id int, ref string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	app, ok := repo.db.applications[id]
	if !ok {
		return admission.ErrNotFound
	}
	app.ArtifactRef = ref
	return nil
}

// NextRollSequence seeds a missing counter from the roll numbers already issued under prefix.
func (repo *applicationRepository) NextRollSequence(_ context.Context, prefix string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	last, ok := repo.db.rollSequences[prefix]
	if !ok {
		rollNos := make([]string, 0, len(repo.db.applications))
		for _, app := range repo.db.applications {
			if app.RollNumber != "" {
				rollNos = append(rollNos, app.RollNumber)
			}
		}
		max, err := admission.MaxSequence(prefix, rollNos)
		if err != nil {
			return 0, err
		}
		last = max
	}
	last++
	repo.db.rollSequences[prefix] = last
	return last, nil
}

func (repo *applicationRepository) QueryMissingArtifacts(_ context.Context, limit int) ([]admission.Application, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	apps := make([]admission.Application, 0)
	for _, app := range repo.query() {
		if len(apps) >= limit {
			break
		}
		if app.Status == admission.StatusVerified && app.RollNumber != "" && app.ArtifactRef == "" {
			apps = append(apps, app)
		}
	}
	return apps, nil
}

func (repo *applicationRepository) Stats(_ context.Context, since time.Time) (admission.Analytics, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	byCategory := make(map[string]int)
	byStatus := make(map[string]int)
	byCenter := make(map[string]int)
	byDay := make(map[string]int)
	apps := repo.query()
	for _, app := range apps {
		byCategory[app.Category]++
		byStatus[string(app.Status)]++
		byCenter[app.TestCenter]++
		if !app.CreatedAt.Before(since) {
			byDay[app.CreatedAt.UTC().Format(core.DateLayout)]++
		}
	}
	return admission.Analytics{
		Total:      len(apps),
		ByCategory: counts(byCategory),
		ByStatus:   counts(byStatus),
		ByCenter:   counts(byCenter),
		ByDay:      counts(byDay),
	}, nil
}

func counts(m map[string]int) []admission.Count {
	cs := make([]admission.Count, 0, len(m))
	for k, v := range m {
		cs = append(cs, admission.Count{Key: k, Total: v})
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].Key < cs[j].Key })
	return cs
}
