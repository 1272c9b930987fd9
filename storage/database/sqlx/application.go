package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
	"github.com/trezcool/admissions/core/fee"
)

const applicationColumns = `id, account_id, class, category, shaheed_status, shaheed_in, remarks, status_label, entry,
	name, father_name, dob, test_center, email, mobile, status, payment_status, amount, tier,
	challan_no, challan_date, fee_slip_ref, roll_number, secure_token, artifact_ref,
	submission_date, created_at, updated_at`

const rollNumberConstraint = "applications_roll_number_key"

var applicationOrderFields = map[string]string{
	"id":              "id",
	"name":            "name",
	"roll_number":     "roll_number",
	"submission_date": "submission_date",
	"created_at":      "created_at",
}

type applicationRow struct {
	ID             int         `db:"id"`
	AccountID      int         `db:"account_id"`
	Class          string      `db:"class"`
	Category       null.String `db:"category"`
	ShaheedStatus  null.String `db:"shaheed_status"`
	ShaheedIn      null.String `db:"shaheed_in"`
	Remarks        string      `db:"remarks"`
	StatusLabel    string      `db:"status_label"`
	Entry          string      `db:"entry"`
	Name           string      `db:"name"`
	FatherName     string      `db:"father_name"`
	DateOfBirth    null.Time   `db:"dob"`
	TestCenter     string      `db:"test_center"`
	Email          string      `db:"email"`
	Mobile         string      `db:"mobile"`
	Status         string      `db:"status"`
	PaymentStatus  string      `db:"payment_status"`
	Amount         int         `db:"amount"`
	Tier           null.String `db:"tier"`
	ChallanNo      null.String `db:"challan_no"`
	ChallanDate    null.Time   `db:"challan_date"`
	FeeSlipRef     null.String `db:"fee_slip_ref"`
	RollNumber     null.String `db:"roll_number"`
	SecureToken    string      `db:"secure_token"`
	ArtifactRef    null.String `db:"artifact_ref"`
	SubmissionDate time.Time   `db:"submission_date"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func nullDate(t *time.Time) null.Time {
	if t == nil {
		return null.Time{}
	}
	return null.TimeFrom(core.Date(*t))
}

func datePtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	d := core.Date(t.Time)
	return &d
}

func (r applicationRow) toApplication() admission.Application {
	return admission.Application{
		ID:            r.ID,
		AccountID:     r.AccountID,
		Class:         admission.Class(r.Class),
		Category:      r.Category.String,
		ShaheedStatus: r.ShaheedStatus.String,
		ShaheedIn:     r.ShaheedIn.String,
		Display: admission.Display{
			Remarks:     r.Remarks,
			StatusLabel: r.StatusLabel,
			Entry:       r.Entry,
		},
		Name:           r.Name,
		FatherName:     r.FatherName,
		DateOfBirth:    datePtr(r.DateOfBirth),
		TestCenter:     r.TestCenter,
		Email:          r.Email,
		Mobile:         r.Mobile,
		Status:         admission.Status(r.Status),
		PaymentStatus:  admission.PaymentStatus(r.PaymentStatus),
		Amount:         r.Amount,
		Tier:           fee.Tier(r.Tier.String),
		ChallanNo:      r.ChallanNo.String,
		ChallanDate:    datePtr(r.ChallanDate),
		FeeSlipRef:     r.FeeSlipRef.String,
		RollNumber:     r.RollNumber.String,
		SecureToken:    r.SecureToken,
		ArtifactRef:    r.ArtifactRef.String,
		SubmissionDate: core.Date(r.SubmissionDate),
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func mapApplicationErr(err error) error {
	if isUniqueViolation(err, rollNumberConstraint) {
		return admission.ErrRollNumberTaken
	}
	return err
}

type applicationRepository struct {
	repository
}

var _ admission.Repository = (*applicationRepository)(nil)

func NewApplicationRepository(db core.DBExecutor) admission.Repository {
	return &applicationRepository{repository{db: db}}
}

func (repo applicationRepository) getOne(ctx context.Context, exec core.DBExecutor, where string, args ...interface{}) (admission.Application, error) {
	var row applicationRow
	q := `SELECT ` + applicationColumns + ` FROM applications WHERE ` + where
	if err := exec.GetContext(ctx, &row, q, args...); err != nil {
		return admission.Application{}, trapNoRowsErr(errors.Wrap(err, "selecting application"), admission.ErrNotFound)
	}
	return row.toApplication(), nil
}

func (repo applicationRepository) Create(ctx context.Context, app admission.Application) (admission.Application, error) {
	var row applicationRow
	q := `INSERT INTO applications (account_id, class, category, shaheed_status, shaheed_in, remarks, status_label, entry,
			name, father_name, dob, test_center, email, mobile, status, payment_status, amount, tier,
			challan_no, challan_date, fee_slip_ref, roll_number, secure_token, artifact_ref,
			submission_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26, $27)
		RETURNING ` + applicationColumns
	err := repo.db.GetContext(
		ctx, &row, q,
		app.AccountID, app.Class, null.NewString(app.Category, app.Category != ""),
		null.NewString(app.ShaheedStatus, app.ShaheedStatus != ""), null.NewString(app.ShaheedIn, app.ShaheedIn != ""),
		app.Remarks, app.StatusLabel, app.Entry,
		app.Name, app.FatherName, nullDate(app.DateOfBirth), app.TestCenter, app.Email, app.Mobile,
		app.Status, app.PaymentStatus, app.Amount, null.NewString(string(app.Tier), app.Tier != ""),
		null.NewString(app.ChallanNo, app.ChallanNo != ""), nullDate(app.ChallanDate),
		null.NewString(app.FeeSlipRef, app.FeeSlipRef != ""), null.NewString(app.RollNumber, app.RollNumber != ""),
		app.SecureToken, null.NewString(app.ArtifactRef, app.ArtifactRef != ""),
		core.Date(app.SubmissionDate), app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		return admission.Application{}, mapApplicationErr(errors.Wrap(err, "inserting application"))
	}
	return row.toApplication(), nil
}

func (repo applicationRepository) GetByID(ctx context.Context, id int, exec ...core.DBExecutor) (admission.Application, error) {
	return repo.getOne(ctx, repo.getExec(exec...), "id = $1", id)
}

func (repo applicationRepository) GetByIDForUpdate(ctx context.Context, id int, exec core.DBExecutor) (admission.Application, error) {
	return repo.getOne(ctx, repo.getExec(exec), "id = $1 FOR UPDATE", id)
}

func (repo applicationRepository) GetByAccount(ctx context.Context, accountID int) (admission.Application, error) {
	return repo.getOne(ctx, repo.db, "account_id = $1", accountID)
}

func (repo applicationRepository) GetBySecureToken(ctx context.Context, token string) (admission.Application, error) {
	if token == "" {
		return admission.Application{}, admission.ErrNotFound
	}
	return repo.getOne(ctx, repo.db, "secure_token = $1", token)
}

func (repo applicationRepository) Filter(ctx context.Context, filter admission.QueryFilter) ([]admission.Application, error) {
	var (
		conds []string
		args  []interface{}
	)
	if len(filter.IDs) > 0 {
		conds = append(conds, "id IN (?)")
		args = append(args, filter.IDs)
	}
	if filter.Class != "" {
		conds = append(conds, "class = ?")
		args = append(args, filter.Class)
	}
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.TestCenter != "" {
		conds = append(conds, "test_center = ?")
		args = append(args, filter.TestCenter)
	}

	q := `SELECT ` + applicationColumns + ` FROM applications`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY " + orderBy(filter.Orderings)

	if len(args) > 0 {
		var err error
		if q, args, err = sqlx.In(q, args...); err != nil {
			return nil, errors.Wrap(err, "expanding application filter")
		}
	}

	var rows []applicationRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting applications")
	}
	apps := make([]admission.Application, 0, len(rows))
	for _, row := range rows {
		apps = append(apps, row.toApplication())
	}
	return apps, nil
}

// orderBy only lets whitelisted columns through.
func orderBy(orderings []core.DBOrdering) string {
	clauses := make([]string, 0, len(orderings)+1)
	for _, ord := range orderings {
		if col, ok := applicationOrderFields[ord.Field]; ok {
			clauses = append(clauses, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	clauses = append(clauses, "id ASC")
	return strings.Join(clauses, ", ")
}

func (repo applicationRepository) Update(ctx context.Context, app admission.Application, exec ...core.DBExecutor) (admission.Application, error) {
	var row applicationRow
	q := `UPDATE applications SET
			class = $2, category = $3, shaheed_status = $4, shaheed_in = $5,
			remarks = $6, status_label = $7, entry = $8,
			name = $9, father_name = $10, dob = $11, test_center = $12, email = $13, mobile = $14,
			status = $15, payment_status = $16, amount = $17, tier = $18,
			challan_no = $19, challan_date = $20, fee_slip_ref = $21,
			roll_number = COALESCE(roll_number, $22),
			secure_token = COALESCE(NULLIF(secure_token, ''), $23),
			artifact_ref = $24, submission_date = $25, updated_at = $26
		WHERE id = $1
		RETURNING ` + applicationColumns
	err := repo.getExec(exec...).GetContext(
		ctx, &row, q,
		app.ID, app.Class, null.NewString(app.Category, app.Category != ""),
		null.NewString(app.ShaheedStatus, app.ShaheedStatus != ""), null.NewString(app.ShaheedIn, app.ShaheedIn != ""),
		app.Remarks, app.StatusLabel, app.Entry,
		app.Name, app.FatherName, nullDate(app.DateOfBirth), app.TestCenter, app.Email, app.Mobile,
		app.Status, app.PaymentStatus, app.Amount, null.NewString(string(app.Tier), app.Tier != ""),
		null.NewString(app.ChallanNo, app.ChallanNo != ""), nullDate(app.ChallanDate),
		null.NewString(app.FeeSlipRef, app.FeeSlipRef != ""),
		null.NewString(app.RollNumber, app.RollNumber != ""), app.SecureToken,
		null.NewString(app.ArtifactRef, app.ArtifactRef != ""), core.Date(app.SubmissionDate), app.UpdatedAt,
	)
	if err != nil {
		err = trapNoRowsErr(errors.Wrap(err, "updating application"), admission.ErrNotFound)
		return admission.Application{}, mapApplicationErr(err)
	}
	return row.toApplication(), nil
}

func (repo applicationRepository) SetArtifactRef(ctx context.Context, id int, ref string) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE applications SET artifact_ref = $2 WHERE id = $1`, id, ref)
	if err != nil {
		return errors.Wrap(err, "updating artifact ref")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "updating artifact ref")
	}
	if n == 0 {
		return admission.ErrNotFound
	}
	return nil
}

// NextRollSequence increments the counter of prefix. A missing counter is seeded from the roll numbers
// already issued under prefix, failing with ErrMalformedRollNumber if one of them does not parse.
func (repo applicationRepository) NextRollSequence(ctx context.Context, prefix string, exec ...core.DBExecutor) (int, error) {
	db := repo.getExec(exec...)

	var next int
	q := `UPDATE roll_sequences SET last_value = last_value + 1 WHERE prefix = $1 RETURNING last_value`
	err := db.GetContext(ctx, &next, q, prefix)
	if err == nil {
		return next, nil
	}
	if errors.Cause(err) != sql.ErrNoRows {
		return 0, errors.Wrapf(err, "incrementing roll sequence %q", prefix)
	}

	var malformed []string
	q = `SELECT roll_number FROM applications
		WHERE roll_number LIKE $1 || '-%' AND roll_number !~ '^[0-9]+-[0-9]{4,}$'
		LIMIT 1`
	if err = db.SelectContext(ctx, &malformed, q, prefix); err != nil {
		return 0, errors.Wrapf(err, "checking roll numbers of %q", prefix)
	}
	if len(malformed) > 0 {
		return 0, errors.Wrapf(admission.ErrMalformedRollNumber, "%q", malformed[0])
	}

	// a concurrent seeder may insert first: the conflict clause then increments its row
	q = `INSERT INTO roll_sequences (prefix, last_value)
		SELECT $1, COALESCE(MAX(split_part(roll_number, '-', 2)::INTEGER), 0) + 1
		FROM applications WHERE roll_number LIKE $1 || '-%'
		ON CONFLICT (prefix) DO UPDATE SET last_value = roll_sequences.last_value + 1
		RETURNING last_value`
	if err = db.GetContext(ctx, &next, q, prefix); err != nil {
		return 0, errors.Wrapf(err, "seeding roll sequence %q", prefix)
	}
	return next, nil
}

func (repo applicationRepository) QueryMissingArtifacts(ctx context.Context, limit int) ([]admission.Application, error) {
	var rows []applicationRow
	q := `SELECT ` + applicationColumns + ` FROM applications
		WHERE status = $1 AND roll_number IS NOT NULL AND COALESCE(artifact_ref, '') = ''
		ORDER BY id LIMIT $2`
	if err := repo.db.SelectContext(ctx, &rows, q, admission.StatusVerified, limit); err != nil {
		return nil, errors.Wrap(err, "selecting applications without roll slip")
	}
	apps := make([]admission.Application, 0, len(rows))
	for _, row := range rows {
		apps = append(apps, row.toApplication())
	}
	return apps, nil
}

func (repo applicationRepository) countBy(ctx context.Context, expr, where string, args ...interface{}) ([]admission.Count, error) {
	counts := make([]admission.Count, 0)
	q := fmt.Sprintf(`SELECT %[1]s AS key, COUNT(*) AS total FROM applications %[2]s GROUP BY %[1]s ORDER BY key`, expr, where)
	if err := repo.db.SelectContext(ctx, &counts, q, args...); err != nil {
		return nil, errors.Wrapf(err, "counting applications by %s", expr)
	}
	return counts, nil
}

func (repo applicationRepository) Stats(ctx context.Context, since time.Time) (admission.Analytics, error) {
	var (
		stats admission.Analytics
		err   error
	)
	if err = repo.db.GetContext(ctx, &stats.Total, `SELECT COUNT(*) FROM applications`); err != nil {
		return stats, errors.Wrap(err, "counting applications")
	}
	if stats.ByCategory, err = repo.countBy(ctx, "COALESCE(category, '')", ""); err != nil {
		return stats, err
	}
	if stats.ByStatus, err = repo.countBy(ctx, "status", ""); err != nil {
		return stats, err
	}
	if stats.ByCenter, err = repo.countBy(ctx, "test_center", ""); err != nil {
		return stats, err
	}
	byDay := "to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD')"
	if stats.ByDay, err = repo.countBy(ctx, byDay, "WHERE created_at >= $1", since); err != nil {
		return stats, err
	}
	return stats, nil
}
