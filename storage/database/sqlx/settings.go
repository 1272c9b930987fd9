package sqlxrepos

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/admission"
)

const templateColumns = `id, title, category, subject, body, created_by, created_at, updated_at`

type templateRow struct {
	ID        int       `db:"id"`
	Title     string    `db:"title"`
	Category  string    `db:"category"`
	Subject   string    `db:"subject"`
	Body      string    `db:"body"`
	CreatedBy null.Int  `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r templateRow) toTemplate() admission.MessageTemplate {
	return admission.MessageTemplate{
		ID:        r.ID,
		Title:     r.Title,
		Category:  admission.TemplateCategory(r.Category),
		Subject:   r.Subject,
		Body:      r.Body,
		CreatedBy: r.CreatedBy.Int,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type settingsRepository struct {
	repository
}

var _ admission.SettingsRepository = (*settingsRepository)(nil)

func NewSettingsRepository(db core.DBExecutor) admission.SettingsRepository {
	return &settingsRepository{repository{db: db}}
}

func (repo settingsRepository) QuerySessions(ctx context.Context) ([]admission.Session, error) {
	var rows []struct {
		Class  string `db:"class"`
		IsOpen bool   `db:"is_open"`
	}
	if err := repo.db.SelectContext(ctx, &rows, `SELECT class, is_open FROM admission_sessions ORDER BY class`); err != nil {
		return nil, errors.Wrap(err, "selecting admission sessions")
	}
	sessions := make([]admission.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, admission.Session{Class: admission.Class(row.Class), IsOpen: row.IsOpen})
	}
	return sessions, nil
}

func (repo settingsRepository) SetSession(ctx context.Context, class admission.Class, open bool) (admission.Session, error) {
	q := `INSERT INTO admission_sessions (class, is_open) VALUES ($1, $2)
		ON CONFLICT (class) DO UPDATE SET is_open = EXCLUDED.is_open`
	if _, err := repo.db.ExecContext(ctx, q, class, open); err != nil {
		return admission.Session{}, errors.Wrap(err, "upserting admission session")
	}
	return admission.Session{Class: class, IsOpen: open}, nil
}

func (repo settingsRepository) FieldVisibility(ctx context.Context) (map[string]bool, error) {
	var rows []struct {
		Name      string `db:"field_name"`
		IsVisible bool   `db:"is_visible"`
	}
	if err := repo.db.SelectContext(ctx, &rows, `SELECT field_name, is_visible FROM field_visibility`); err != nil {
		return nil, errors.Wrap(err, "selecting field visibility")
	}
	fields := make(map[string]bool, len(rows))
	for _, row := range rows {
		fields[row.Name] = row.IsVisible
	}
	return fields, nil
}

// SetFieldVisibility upserts all fields in one statement.
func (repo settingsRepository) SetFieldVisibility(ctx context.Context, fields map[string]bool) error {
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([]string, 0, len(names))
	args := make([]interface{}, 0, 2*len(names))
	for i, name := range names {
		values = append(values, fmt.Sprintf("($%d, $%d)", 2*i+1, 2*i+2))
		args = append(args, name, fields[name])
	}
	q := `INSERT INTO field_visibility (field_name, is_visible) VALUES ` + strings.Join(values, ", ") + `
		ON CONFLICT (field_name) DO UPDATE SET is_visible = EXCLUDED.is_visible`
	if _, err := repo.db.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrap(err, "upserting field visibility")
	}
	return nil
}

func (repo settingsRepository) CreateTemplate(ctx context.Context, tmpl admission.MessageTemplate) (admission.MessageTemplate, error) {
	var row templateRow
	q := `INSERT INTO message_templates (title, category, subject, body, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + templateColumns
	err := repo.db.GetContext(
		ctx, &row, q,
		tmpl.Title, tmpl.Category, tmpl.Subject, tmpl.Body,
		null.NewInt(tmpl.CreatedBy, tmpl.CreatedBy != 0), tmpl.CreatedAt, tmpl.UpdatedAt,
	)
	if err != nil {
		return admission.MessageTemplate{}, errors.Wrap(err, "inserting message template")
	}
	return row.toTemplate(), nil
}

func (repo settingsRepository) GetTemplate(ctx context.Context, id int) (admission.MessageTemplate, error) {
	var row templateRow
	q := `SELECT ` + templateColumns + ` FROM message_templates WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return admission.MessageTemplate{}, trapNoRowsErr(errors.Wrap(err, "selecting message template"), admission.ErrTemplateNotFound)
	}
	return row.toTemplate(), nil
}

func (repo settingsRepository) QueryTemplates(ctx context.Context) ([]admission.MessageTemplate, error) {
	var rows []templateRow
	q := `SELECT ` + templateColumns + ` FROM message_templates ORDER BY created_at DESC, id DESC`
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "selecting message templates")
	}
	tmpls := make([]admission.MessageTemplate, 0, len(rows))
	for _, row := range rows {
		tmpls = append(tmpls, row.toTemplate())
	}
	return tmpls, nil
}
