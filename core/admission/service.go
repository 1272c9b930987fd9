package admission

import (
	"context"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/fee"
)

type (
	Deps struct {
		Tx          core.Transactor
		Repo        Repository
		Settings    SettingsRepository
		Fees        *fee.Service
		Slips       SlipGenerator
		Files       FileStore
		Notifier    Notifier
		Logger      core.Logger
		Observer    Observer // optional
		BulkWorkers int
	}

	Service struct {
		tx          core.Transactor
		repo        Repository
		settings    SettingsRepository
		fees        *fee.Service
		slips       SlipGenerator
		files       FileStore
		notifier    Notifier
		logger      core.Logger
		observer    Observer
		bulkWorkers int
		nowFunc     func() time.Time
	}
)

func NewService(deps Deps) *Service {
	svc := &Service{
		tx:          deps.Tx,
		repo:        deps.Repo,
		settings:    deps.Settings,
		fees:        deps.Fees,
		slips:       deps.Slips,
		files:       deps.Files,
		notifier:    deps.Notifier,
		logger:      deps.Logger,
		observer:    deps.Observer,
		bulkWorkers: deps.BulkWorkers,
		nowFunc:     time.Now,
	}
	if svc.observer == nil {
		svc.observer = nopObserver{}
	}
	if svc.logger == nil {
		svc.logger = core.NopLogger
	}
	if svc.bulkWorkers <= 0 {
		svc.bulkWorkers = 1
	}
	return svc
}

// SetNowFunc overrides the clock (tests).
func (svc *Service) SetNowFunc(f func() time.Time) {
	svc.nowFunc = f
}

func (svc *Service) GetByID(ctx context.Context, id int) (Application, error) {
	return svc.repo.GetByID(ctx, id)
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]Application, error) {
	return svc.repo.Filter(ctx, filter)
}

// Start returns the application of the account, creating a draft on first access.
func (svc *Service) Start(ctx context.Context, accountID int, na NewApplication) (Application, error) {
	app, err := svc.repo.GetByAccount(ctx, accountID)
	if err == nil {
		return app, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Application{}, errors.Wrap(err, "getting application by account")
	}

	now := svc.nowFunc().UTC()
	display, _, _ := Derive(na.Class, "", "", "", now)
	app = Application{
		AccountID:      accountID,
		Class:          na.Class,
		Name:           core.CleanString(na.Name),
		Email:          core.CleanString(na.Email, true /* lower */),
		Display:        display,
		Status:         StatusDraft,
		PaymentStatus:  PaymentPending,
		SecureToken:    NewSecureToken(),
		SubmissionDate: core.Date(now),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return svc.repo.Create(ctx, app)
}

func (svc *Service) Mine(ctx context.Context, accountID int) (Application, error) {
	return svc.repo.GetByAccount(ctx, accountID)
}

// Dashboard returns the account's application with today's fee for it.
func (svc *Service) Dashboard(ctx context.Context, accountID int) (Dashboard, error) {
	app, err := svc.repo.GetByAccount(ctx, accountID)
	if err != nil {
		return Dashboard{}, err
	}
	open, err := svc.IsSessionOpen(ctx, app.Class)
	if err != nil {
		return Dashboard{}, err
	}

	dash := Dashboard{Application: app, SessionOpen: open}
	quote, err := svc.fees.QuoteNow(ctx, string(app.Class), app.Category)
	switch cause := errors.Cause(err); cause {
	case nil:
		dash.Quote = &quote
	case fee.ErrNoConfig, fee.ErrClosed:
		dash.FeeError = cause.Error()
	default:
		return Dashboard{}, errors.Wrap(err, "quoting fee")
	}
	return dash, nil
}

// SaveDetails stores the applicant's form and moves a draft to payment_pending.
func (svc *Service) SaveDetails(ctx context.Context, accountID int, d Details, validate *validator.Validate) (Application, error) {
	app, err := svc.repo.GetByAccount(ctx, accountID)
	if err != nil {
		return Application{}, err
	}
	if app.IsVerified() {
		return Application{}, ErrAlreadyVerified
	}
	if err = svc.requireOpenSession(ctx, app.Class); err != nil {
		return Application{}, err
	}

	now := svc.nowFunc()
	if err = d.Validate(validate, app.Class, now); err != nil {
		return Application{}, err
	}
	dob, _ := core.ParseDate(d.DateOfBirth)

	return svc.updateLocked(ctx, app.ID, func(app *Application) error {
		if app.IsVerified() {
			return ErrAlreadyVerified
		}
		app.Category = d.Category
		app.Name = d.Name
		app.FatherName = d.FatherName
		app.DateOfBirth = &dob
		app.TestCenter = d.TestCenter
		app.Mobile = d.Mobile
		if d.Email != "" {
			app.Email = d.Email
		}
		app.Display, app.ShaheedStatus, app.ShaheedIn = Derive(app.Class, d.Category, d.ShaheedStatus, d.ShaheedIn, now)
		if app.Status == StatusDraft {
			app.Status = StatusPaymentPending
		}
		app.UpdatedAt = now.UTC()
		return nil
	})
}

// PrintChallan stamps the current fee on the application, and the challan number and date on first print.
func (svc *Service) PrintChallan(ctx context.Context, accountID int) (Application, error) {
	app, err := svc.repo.GetByAccount(ctx, accountID)
	if err != nil {
		return Application{}, err
	}
	if err = svc.requireOpenSession(ctx, app.Class); err != nil {
		return Application{}, err
	}

	now := svc.nowFunc()
	return svc.updateLocked(ctx, app.ID, func(app *Application) error {
		quote, err := svc.fees.Quote(ctx, string(app.Class), app.Category, now)
		if err != nil {
			return err
		}
		if !app.IsVerified() {
			app.Amount = quote.Amount
			app.Tier = quote.Tier
		}
		if app.ChallanNo == "" {
			app.ChallanNo = newChallanNo()
		}
		if app.ChallanDate == nil {
			today := core.Date(now)
			app.ChallanDate = &today
		}
		app.UpdatedAt = now.UTC()
		return nil
	})
}

// UploadFeeSlip stores the paid challan and puts the application under review.
// It is how a rejected application gets resubmitted.
func (svc *Service) UploadFeeSlip(ctx context.Context, accountID int, filename string, content []byte) (Application, error) {
	app, err := svc.repo.GetByAccount(ctx, accountID)
	if err != nil {
		return Application{}, err
	}
	if app.IsVerified() {
		return Application{}, ErrAlreadyVerified
	}
	if app.ChallanNo == "" {
		return Application{}, core.NewValidationError(ErrChallanRequired)
	}
	if err = svc.requireOpenSession(ctx, app.Class); err != nil {
		return Application{}, err
	}

	// stored before locking the row: an upload orphaned by a concurrent verification is harmless
	name := path.Join("fee_slips", app.ChallanNo+"_"+path.Base(filename))
	ref, err := svc.files.Save(ctx, name, content)
	if err != nil {
		return Application{}, errors.Wrap(err, "saving fee slip")
	}

	now := svc.nowFunc()
	return svc.updateLocked(ctx, app.ID, func(app *Application) error {
		if app.IsVerified() {
			return ErrAlreadyVerified
		}
		app.FeeSlipRef = ref
		app.PaymentStatus = PaymentUnderReview
		app.Status = StatusSubmitted
		app.SubmissionDate = core.Date(now)
		app.UpdatedAt = now.UTC()
		return nil
	})
}

// updateLocked applies fn to the application re-read under a row lock, and saves it in the same
// transaction. fn sees the state left by any verification or rejection committed meanwhile.
func (svc *Service) updateLocked(ctx context.Context, id int, fn func(app *Application) error) (Application, error) {
	var app Application
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if app, err = svc.repo.GetByIDForUpdate(ctx, id, exec); err != nil {
			return err
		}
		if err = fn(&app); err != nil {
			return err
		}
		app, err = svc.repo.Update(ctx, app, exec)
		return err
	})
	if err != nil {
		return Application{}, err
	}
	return app, nil
}
