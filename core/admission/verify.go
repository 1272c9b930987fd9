package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/fee"
)

// VerifyOptions carries the caller's context, used to build the links sent to applicants.
type VerifyOptions struct {
	BaseURL string
}

// SlipLink is the public, token-gated download link of a roll number slip.
func SlipLink(baseURL, token string) string {
	return fmt.Sprintf("%s/admissions/download-roll-slip/%s/", baseURL, token)
}

// Verify marks the application's payment as verified and issues its roll number, exactly once.
// Verifying an already verified application changes nothing.
// Generating the slip and notifying the applicant happen after commit and never fail the verification.
func (svc *Service) Verify(ctx context.Context, id int, opts VerifyOptions) (Application, error) {
	var app Application
	var wasVerified, allocated bool

	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		app, err = svc.repo.GetByIDForUpdate(ctx, id, exec)
		if err != nil {
			return err
		}
		wasVerified = app.IsVerified() && app.RollNumber != ""
		if wasVerified {
			return nil
		}

		app.Status = StatusVerified
		app.PaymentStatus = PaymentVerified
		if app.Amount == 0 {
			svc.stampFee(ctx, &app)
		}

		if app.RollNumber == "" {
			prefix := app.Class.RollPrefix()
			if prefix == "" {
				return errors.Errorf("no roll number prefix for class %q", app.Class)
			}
			start := time.Now()
			seq, err := svc.repo.NextRollSequence(ctx, prefix, exec)
			if err != nil {
				return errors.Wrap(err, "allocating roll number")
			}
			svc.observer.RollAllocation(time.Since(start))
			app.RollNumber = FormatRollNumber(prefix, seq)
			allocated = true
		}
		if app.SecureToken == "" {
			app.SecureToken = NewSecureToken()
		}
		app.UpdatedAt = svc.nowFunc().UTC()

		app, err = svc.repo.Update(ctx, app, exec)
		return err
	})
	if err != nil {
		return Application{}, errors.Wrapf(err, "verifying application %d", id)
	}
	svc.observer.Verified(app.Class, allocated)

	if wasVerified {
		return app, nil
	}

	slip, err := svc.generateSlip(ctx, &app)
	if err != nil {
		svc.observer.SlipFailed()
		svc.logger.Warn(fmt.Sprintf("generating roll slip of application %d: %v", app.ID, err), err)
	}
	svc.notify(Event{
		Kind:        EventVerified,
		Application: app,
		Link:        SlipLink(opts.BaseURL, app.SecureToken),
		Slip:        slip,
	})
	return app, nil
}

// Reject marks the application's payment as rejected. A verified application cannot be rejected.
func (svc *Service) Reject(ctx context.Context, id int, _ VerifyOptions) (Application, error) {
	var app Application
	var wasRejected bool

	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		app, err = svc.repo.GetByIDForUpdate(ctx, id, exec)
		if err != nil {
			return err
		}
		if app.IsVerified() {
			return ErrInvalidTransition
		}
		wasRejected = app.Status == StatusRejected && app.PaymentStatus == PaymentRejected

		app.Status = StatusRejected
		app.PaymentStatus = PaymentRejected
		app.UpdatedAt = svc.nowFunc().UTC()
		app, err = svc.repo.Update(ctx, app, exec)
		return err
	})
	if err != nil {
		return Application{}, errors.Wrapf(err, "rejecting application %d", id)
	}
	svc.observer.Rejected(app.Class)

	if !wasRejected {
		svc.notify(Event{Kind: EventRejected, Application: app})
	}
	return app, nil
}

// BulkVerify verifies each application in its own transaction, running up to the configured
// number of workers at once. Results are in the order of ids.
func (svc *Service) BulkVerify(ctx context.Context, ids []int, opts VerifyOptions) []BulkResult {
	return svc.bulk(ctx, ids, func(ctx context.Context, id int) (Application, error) {
		return svc.Verify(ctx, id, opts)
	})
}

// BulkReject is the rejecting counterpart of BulkVerify.
func (svc *Service) BulkReject(ctx context.Context, ids []int, opts VerifyOptions) []BulkResult {
	return svc.bulk(ctx, ids, func(ctx context.Context, id int) (Application, error) {
		return svc.Reject(ctx, id, opts)
	})
}

func (svc *Service) bulk(ctx context.Context, ids []int, action func(context.Context, int) (Application, error)) []BulkResult {
	results := make([]BulkResult, len(ids))

	// per-id failures are reported in results, so the group itself never fails
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(svc.bulkWorkers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			res := BulkResult{ID: id}
			if err := gctx.Err(); err != nil {
				res.Error = err.Error()
				results[i] = res
				return nil
			}
			app, err := action(gctx, id)
			if err != nil {
				res.Error = publicError(err)
				if errors.Cause(err) != ErrNotFound {
					svc.logger.Error(fmt.Sprintf("bulk action on application %d: %v", id, err), err)
				}
			} else {
				res.OK = true
				res.RollNumber = app.RollNumber
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// stampFee prices the application as of its submission date. Pricing problems never block verification.
func (svc *Service) stampFee(ctx context.Context, app *Application) {
	asOf := app.SubmissionDate
	if asOf.IsZero() {
		asOf = svc.nowFunc()
	}
	quote, err := svc.fees.Quote(ctx, string(app.Class), app.Category, asOf)
	switch cause := errors.Cause(err); cause {
	case nil:
		app.Amount = quote.Amount
		app.Tier = quote.Tier
	case fee.ErrNoConfig, fee.ErrClosed:
		svc.logger.Info(fmt.Sprintf("application %d verified without fee: %v", app.ID, cause))
	default:
		svc.logger.Warn(fmt.Sprintf("quoting fee of application %d: %v", app.ID, err), err)
	}
}

func (svc *Service) notify(ev Event) bool {
	if svc.notifier == nil {
		return false
	}
	if !svc.notifier.Notify(ev) {
		svc.logger.Warn(fmt.Sprintf("notification %s of application %d dropped", ev.Kind, ev.Application.ID))
		return false
	}
	return true
}

// publicError hides internal details from bulk results.
func publicError(err error) string {
	switch cause := errors.Cause(err); cause {
	case ErrNotFound, ErrInvalidTransition, ErrRollNumberTaken, ErrMalformedRollNumber:
		return cause.Error()
	default:
		return "internal error"
	}
}
