package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/fee"
)

const scheduleColumns = `id, class, normal_deadline, late_deadline, final_deadline, stop_after_final,
	normal_fee, late_fee, final_fee, created_at, updated_at`

const overrideColumns = `id, schedule_id, category, normal_fee, late_fee, final_fee, created_at, updated_at`

type scheduleRow struct {
	ID             int       `db:"id"`
	Class          string    `db:"class"`
	NormalDeadline time.Time `db:"normal_deadline"`
	LateDeadline   time.Time `db:"late_deadline"`
	FinalDeadline  time.Time `db:"final_deadline"`
	StopAfterFinal bool      `db:"stop_after_final"`
	NormalFee      int       `db:"normal_fee"`
	LateFee        int       `db:"late_fee"`
	FinalFee       int       `db:"final_fee"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r scheduleRow) toSchedule() fee.Schedule {
	return fee.Schedule{
		ID:             r.ID,
		Class:          r.Class,
		NormalDeadline: core.Date(r.NormalDeadline),
		LateDeadline:   core.Date(r.LateDeadline),
		FinalDeadline:  core.Date(r.FinalDeadline),
		StopAfterFinal: r.StopAfterFinal,
		Fees:           fee.Fees{Normal: r.NormalFee, Late: r.LateFee, Final: r.FinalFee},
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type overrideRow struct {
	ID         int       `db:"id"`
	ScheduleID int       `db:"schedule_id"`
	Category   string    `db:"category"`
	NormalFee  int       `db:"normal_fee"`
	LateFee    int       `db:"late_fee"`
	FinalFee   int       `db:"final_fee"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r overrideRow) toOverride() fee.CategoryOverride {
	return fee.CategoryOverride{
		ID:         r.ID,
		ScheduleID: r.ScheduleID,
		Category:   r.Category,
		Fees:       fee.Fees{Normal: r.NormalFee, Late: r.LateFee, Final: r.FinalFee},
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type feeRepository struct {
	repository
}

var _ fee.Repository = (*feeRepository)(nil)

func NewFeeRepository(db core.DBExecutor) fee.Repository {
	return &feeRepository{repository{db: db}}
}

func (repo feeRepository) GetSchedule(ctx context.Context, class string) (fee.Schedule, error) {
	var row scheduleRow
	q := `SELECT ` + scheduleColumns + ` FROM fee_schedules WHERE class = $1`
	if err := repo.db.GetContext(ctx, &row, q, class); err != nil {
		return fee.Schedule{}, trapNoRowsErr(errors.Wrap(err, "selecting fee schedule"), fee.ErrNoConfig)
	}
	return row.toSchedule(), nil
}

func (repo feeRepository) QuerySchedules(ctx context.Context) ([]fee.Schedule, error) {
	var rows []scheduleRow
	q := `SELECT ` + scheduleColumns + ` FROM fee_schedules ORDER BY class`
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting fee schedules")
	}
	scheds := make([]fee.Schedule, 0, len(rows))
	for _, row := range rows {
		scheds = append(scheds, row.toSchedule())
	}
	return scheds, nil
}

func (repo feeRepository) SaveSchedule(ctx context.Context, sched fee.Schedule) (fee.Schedule, error) {
	var row scheduleRow
	q := `INSERT INTO fee_schedules (class, normal_deadline, late_deadline, final_deadline, stop_after_final,
			normal_fee, late_fee, final_fee, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (class) DO UPDATE SET
			normal_deadline = EXCLUDED.normal_deadline,
			late_deadline = EXCLUDED.late_deadline,
			final_deadline = EXCLUDED.final_deadline,
			stop_after_final = EXCLUDED.stop_after_final,
			normal_fee = EXCLUDED.normal_fee,
			late_fee = EXCLUDED.late_fee,
			final_fee = EXCLUDED.final_fee,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + scheduleColumns
	err := repo.db.GetContext(
		ctx, &row, q,
		sched.Class, sched.NormalDeadline, sched.LateDeadline, sched.FinalDeadline, sched.StopAfterFinal,
		sched.Fees.Normal, sched.Fees.Late, sched.Fees.Final, sched.CreatedAt, sched.UpdatedAt,
	)
	if err != nil {
		return fee.Schedule{}, errors.Wrap(err, "upserting fee schedule")
	}
	return row.toSchedule(), nil
}

func (repo feeRepository) GetOverride(ctx context.Context, scheduleID int, category string) (fee.CategoryOverride, error) {
	var row overrideRow
	q := `SELECT ` + overrideColumns + ` FROM fee_category_overrides WHERE schedule_id = $1 AND category = $2`
	if err := repo.db.GetContext(ctx, &row, q, scheduleID, category); err != nil {
		return fee.CategoryOverride{}, trapNoRowsErr(errors.Wrap(err, "selecting category fee"), fee.ErrOverrideNotFound)
	}
	return row.toOverride(), nil
}

func (repo feeRepository) QueryOverrides(ctx context.Context, scheduleID int) ([]fee.CategoryOverride, error) {
	var rows []overrideRow
	q := `SELECT ` + overrideColumns + ` FROM fee_category_overrides WHERE schedule_id = $1 ORDER BY category`
	if err := repo.db.SelectContext(ctx, &rows, q, scheduleID); err != nil {
		return nil, errors.Wrap(err, "selecting category fees")
	}
	ovrs := make([]fee.CategoryOverride, 0, len(rows))
	for _, row := range rows {
		ovrs = append(ovrs, row.toOverride())
	}
	return ovrs, nil
}

func (repo feeRepository) SaveOverride(ctx context.Context, ovr fee.CategoryOverride) (fee.CategoryOverride, error) {
	var row overrideRow
	q := `INSERT INTO fee_category_overrides (schedule_id, category, normal_fee, late_fee, final_fee, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (schedule_id, category) DO UPDATE SET
			normal_fee = EXCLUDED.normal_fee,
			late_fee = EXCLUDED.late_fee,
			final_fee = EXCLUDED.final_fee,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + overrideColumns
	err := repo.db.GetContext(
		ctx, &row, q,
		ovr.ScheduleID, ovr.Category, ovr.Fees.Normal, ovr.Fees.Late, ovr.Fees.Final, ovr.CreatedAt, ovr.UpdatedAt,
	)
	if err != nil {
		return fee.CategoryOverride{}, errors.Wrap(err, "upserting category fee")
	}
	return row.toOverride(), nil
}
