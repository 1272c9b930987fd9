package admission

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
)

var (
	// errors
	ErrNotFound            = errors.New("application not found")
	ErrTemplateNotFound    = errors.New("message template not found")
	ErrMalformedRollNumber = errors.New("malformed roll number")
	ErrRollNumberTaken     = errors.New("roll number already taken")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrSessionClosed       = errors.New("admission session is closed")
	ErrAgeNotEligible      = errors.New("candidate's age is not eligible")
	ErrAlreadyVerified     = errors.New("application already verified")
	ErrChallanRequired     = errors.New("print the fee challan first")
)

type (
	// QueryFilter applies AND operation on its set fields.
	QueryFilter struct {
		IDs        []int
		Class      Class
		Category   string
		Status     Status
		TestCenter string
		Orderings  []core.DBOrdering
	}

	Repository interface {
		Create(ctx context.Context, app Application) (Application, error)
		GetByID(ctx context.Context, id int, exec ...core.DBExecutor) (Application, error)
		// GetByIDForUpdate locks the row until exec's transaction ends.
		GetByIDForUpdate(ctx context.Context, id int, exec core.DBExecutor) (Application, error)
		GetByAccount(ctx context.Context, accountID int) (Application, error)
		GetBySecureToken(ctx context.Context, token string) (Application, error)
		Filter(ctx context.Context, filter QueryFilter) ([]Application, error)
		// Update saves app's mutable fields. A stored roll number or secure token is never overwritten,
		// and a roll number held by another application fails with ErrRollNumberTaken.
		Update(ctx context.Context, app Application, exec ...core.DBExecutor) (Application, error)
		SetArtifactRef(ctx context.Context, id int, ref string) error
		// NextRollSequence atomically increments and returns the counter of prefix.
		// The counter row stays locked until exec's transaction ends, so sequences follow commit order.
		NextRollSequence(ctx context.Context, prefix string, exec ...core.DBExecutor) (int, error)
		QueryMissingArtifacts(ctx context.Context, limit int) ([]Application, error)
		Stats(ctx context.Context, since time.Time) (Analytics, error)
	}

	SettingsRepository interface {
		QuerySessions(ctx context.Context) ([]Session, error)
		SetSession(ctx context.Context, class Class, open bool) (Session, error)
		// FieldVisibility returns the explicitly configured fields only; unlisted fields are visible.
		FieldVisibility(ctx context.Context) (map[string]bool, error)
		SetFieldVisibility(ctx context.Context, fields map[string]bool) error
		CreateTemplate(ctx context.Context, tmpl MessageTemplate) (MessageTemplate, error)
		GetTemplate(ctx context.Context, id int) (MessageTemplate, error)
		QueryTemplates(ctx context.Context) ([]MessageTemplate, error)
	}

	// SlipGenerator renders the roll number slip of a verified application.
	SlipGenerator interface {
		Generate(app Application) ([]byte, error)
	}

	// FileStore persists generated and uploaded files. Refs are opaque to callers.
	FileStore interface {
		Save(ctx context.Context, name string, content []byte) (ref string, err error)
		Open(ctx context.Context, ref string) ([]byte, error)
	}

	// Observer is told about state machine outcomes, e.g. for metrics.
	Observer interface {
		Verified(class Class, allocated bool)
		Rejected(class Class)
		SlipFailed()
		RollAllocation(d time.Duration)
	}
)

type nopObserver struct{}

func (nopObserver) Verified(Class, bool)         {}
func (nopObserver) Rejected(Class)               {}
func (nopObserver) SlipFailed()                  {}
func (nopObserver) RollAllocation(time.Duration) {}
