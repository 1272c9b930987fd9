package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/fee"
	"github.com/trezcool/admissions/core/notification"
	"github.com/trezcool/admissions/services/slip"
	filestore "github.com/trezcool/admissions/storage/files"
	inmemdb "github.com/trezcool/admissions/storage/database/inmem"
)

// Env wires the services on in-memory storage.
type Env struct {
	DB            *inmemdb.DB
	Repo          admission.Repository
	Settings      admission.SettingsRepository
	Files         *filestore.Memory
	Notifier      *Notifier
	Fees          *fee.Service
	Admissions    *admission.Service
	Notifications *notification.Service
}

func NewEnv(bulkWorkers int) *Env {
	db := inmemdb.NewDB()
	env := &Env{
		DB:       db,
		Repo:     inmemdb.NewApplicationRepository(db),
		Settings: inmemdb.NewSettingsRepository(db),
		Files:    filestore.NewMemory(),
		Notifier: new(Notifier),
		Fees:     fee.NewService(inmemdb.NewFeeRepository(db)),
	}
	env.Notifications = notification.NewService(inmemdb.NewNotificationRepository(db))
	env.Admissions = admission.NewService(admission.Deps{
		Tx:          db,
		Repo:        env.Repo,
		Settings:    env.Settings,
		Fees:        env.Fees,
		Slips:       slip.NewGenerator(),
		Files:       env.Files,
		Notifier:    env.Notifier,
		BulkWorkers: bulkWorkers,
	})
	return env
}

// Notifier records events instead of delivering them.
type Notifier struct {
	mu     sync.Mutex
	events []admission.Event
	full   bool
}

func (n *Notifier) Notify(ev admission.Event) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.full {
		return false
	}
	n.events = append(n.events, ev)
	return true
}

// SetFull makes Notify drop events, like a saturated queue.
func (n *Notifier) SetFull(full bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.full = full
}

func (n *Notifier) Events() []admission.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]admission.Event(nil), n.events...)
}

func (n *Notifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}

func Date(t *testing.T, s string) time.Time {
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("Date(%q) failed: %v", s, err)
	}
	return d
}

func CreateSchedule(
	t *testing.T,
	svc *fee.Service,
	class, normal, late, final string,
	stopAfterFinal bool,
	fees fee.Fees,
) fee.Schedule {
	sched, err := svc.Configure(context.Background(), fee.Schedule{
		Class:          class,
		NormalDeadline: Date(t, normal),
		LateDeadline:   Date(t, late),
		FinalDeadline:  Date(t, final),
		StopAfterFinal: stopAfterFinal,
		Fees:           fees,
	})
	if err != nil {
		t.Fatalf("CreateSchedule() failed: %v", err)
	}
	return sched
}

// CreateApplication stores an application as the repository would receive it, bypassing the
// applicant flow. Zero fields get sensible defaults.
func CreateApplication(t *testing.T, repo admission.Repository, app admission.Application) admission.Application {
	tstamp := time.Now().UTC()
	if app.AccountID == 0 {
		t.Fatal("CreateApplication() failed: AccountID is required")
	}
	if app.Class == "" {
		app.Class = admission.ClassVIII
	}
	if app.Category == "" {
		app.Category = admission.CategoryCivilian
	}
	if app.Name == "" {
		app.Name = "Candidate"
	}
	if app.TestCenter == "" {
		app.TestCenter = "Murree"
	}
	if app.Status == "" {
		app.Status = admission.StatusSubmitted
	}
	if app.PaymentStatus == "" {
		app.PaymentStatus = admission.PaymentUnderReview
	}
	if app.SecureToken == "" {
		app.SecureToken = admission.NewSecureToken()
	}
	if app.SubmissionDate.IsZero() {
		app.SubmissionDate = core.Date(tstamp)
	}
	if app.CreatedAt.IsZero() {
		app.CreatedAt = tstamp
		app.UpdatedAt = tstamp
	}
	app.Display, app.ShaheedStatus, app.ShaheedIn = admission.Derive(
		app.Class, app.Category, app.ShaheedStatus, app.ShaheedIn, app.SubmissionDate,
	)

	app, err := repo.Create(context.Background(), app)
	if err != nil {
		t.Fatalf("CreateApplication() failed: %v", err)
	}
	return app
}
