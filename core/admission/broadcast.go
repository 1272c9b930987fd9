package admission

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/admissions/core"
)

// Broadcast sends a message to a set of applications, either from a stored template or inline.
type Broadcast struct {
	IDs        []int  `json:"ids" validate:"required,min=1"`
	TemplateID int    `json:"template_id"`
	Subject    string `json:"subject" validate:"required_without=TemplateID,max=200"`
	Body       string `json:"body" validate:"required_without=TemplateID"`
}

func (b *Broadcast) Validate(validate *validator.Validate) error {
	b.Subject = core.CleanString(b.Subject)
	b.Body = strings.TrimSpace(b.Body)
	return validate.Struct(b)
}

// RenderPlaceholders fills {name}, {father_name}, {roll_number}, {test_center}, {category} and {entry}.
func RenderPlaceholders(text string, app Application) string {
	return strings.NewReplacer(
		"{name}", app.Name,
		"{father_name}", app.FatherName,
		"{roll_number}", app.RollNumber,
		"{test_center}", app.TestCenter,
		"{category}", CategoryName(app.Category),
		"{entry}", app.Entry,
	).Replace(text)
}

// Broadcast queues one email and in-app notification per application. It returns how many were queued.
func (svc *Service) Broadcast(ctx context.Context, b Broadcast) (int, error) {
	subject, body := b.Subject, b.Body
	if b.TemplateID != 0 {
		tmpl, err := svc.settings.GetTemplate(ctx, b.TemplateID)
		if err != nil {
			return 0, err
		}
		if subject == "" {
			subject = tmpl.Subject
		}
		if body == "" {
			body = tmpl.Body
		}
		if subject == "" {
			subject = tmpl.Title
		}
	}

	apps, err := svc.repo.Filter(ctx, QueryFilter{IDs: b.IDs})
	if err != nil {
		return 0, errors.Wrap(err, "filtering applications")
	}

	var queued int
	for _, app := range apps {
		queuedOne := svc.notify(Event{
			Kind:        EventBroadcast,
			Application: app,
			Subject:     RenderPlaceholders(subject, app),
			Body:        RenderPlaceholders(body, app),
		})
		if queuedOne {
			queued++
		}
	}
	return queued, nil
}

// Analytics counts applications overall, and per day over the last `days` days.
func (svc *Service) Analytics(ctx context.Context, days int) (Analytics, error) {
	since := core.Date(svc.nowFunc()).AddDate(0, 0, -days)
	stats, err := svc.repo.Stats(ctx, since)
	return stats, errors.Wrap(err, "computing analytics")
}
