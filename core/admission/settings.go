package admission

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
)

// Sessions lists every class, closed unless configured otherwise.
func (svc *Service) Sessions(ctx context.Context) ([]Session, error) {
	stored, err := svc.settings.QuerySessions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	open := make(map[Class]bool, len(stored))
	for _, s := range stored {
		open[s.Class] = s.IsOpen
	}
	sessions := make([]Session, 0, len(Classes))
	for _, c := range Classes {
		sessions = append(sessions, Session{Class: c, IsOpen: open[c]})
	}
	return sessions, nil
}

func (svc *Service) IsSessionOpen(ctx context.Context, class Class) (bool, error) {
	sessions, err := svc.Sessions(ctx)
	if err != nil {
		return false, err
	}
	for _, s := range sessions {
		if s.Class == class {
			return s.IsOpen, nil
		}
	}
	return false, nil
}

func (svc *Service) SetSession(ctx context.Context, class Class, open bool) (Session, error) {
	if !class.Valid() {
		return Session{}, core.NewFieldError("class", "must be one of VIII, XI")
	}
	return svc.settings.SetSession(ctx, class, open)
}

func (svc *Service) requireOpenSession(ctx context.Context, class Class) error {
	open, err := svc.IsSessionOpen(ctx, class)
	if err != nil {
		return err
	}
	if !open {
		return ErrSessionClosed
	}
	return nil
}

func (svc *Service) FieldVisibility(ctx context.Context) (map[string]bool, error) {
	return svc.settings.FieldVisibility(ctx)
}

// SetFieldVisibility merges fields into the stored visibility map and returns the result.
func (svc *Service) SetFieldVisibility(ctx context.Context, fields map[string]bool) (map[string]bool, error) {
	cleaned := make(map[string]bool, len(fields))
	for name, visible := range fields {
		name = core.CleanString(name, true /* lower */)
		if name == "" {
			return nil, core.NewFieldError("fields", "field names cannot be blank")
		}
		cleaned[name] = visible
	}
	if err := svc.settings.SetFieldVisibility(ctx, cleaned); err != nil {
		return nil, errors.Wrap(err, "saving field visibility")
	}
	return svc.settings.FieldVisibility(ctx)
}

// NewMessageTemplate contains information needed to create a MessageTemplate.
type NewMessageTemplate struct {
	Title    string           `json:"title" validate:"required,max=200"`
	Category TemplateCategory `json:"category" validate:"omitempty,oneof=general verification rejection announcement"`
	Subject  string           `json:"subject" validate:"max=200"`
	Body     string           `json:"body" validate:"required"`
}

func (nt *NewMessageTemplate) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	nt.Subject = core.CleanString(nt.Subject)
	nt.Body = strings.TrimSpace(nt.Body)
	if nt.Category == "" {
		nt.Category = TemplateGeneral
	}
	return validate.Struct(nt)
}

func (svc *Service) CreateTemplate(ctx context.Context, nt NewMessageTemplate, createdBy int) (MessageTemplate, error) {
	now := svc.nowFunc().UTC()
	return svc.settings.CreateTemplate(ctx, MessageTemplate{
		Title:     nt.Title,
		Category:  nt.Category,
		Subject:   nt.Subject,
		Body:      nt.Body,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) Templates(ctx context.Context) ([]MessageTemplate, error) {
	return svc.settings.QueryTemplates(ctx)
}
