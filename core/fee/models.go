package fee

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/admissions/core"
)

// Tier is the pricing bracket selected by comparing a date with a Schedule's deadlines.
type Tier string

const (
	TierNormal Tier = "normal"
	TierLate   Tier = "late"
	TierFinal  Tier = "final"
)

// Fees holds one amount per Tier.
type Fees struct {
	Normal int `json:"normal" validate:"min=0"`
	Late   int `json:"late" validate:"min=0"`
	Final  int `json:"final" validate:"min=0"`
}

func (f Fees) For(t Tier) int {
	switch t {
	case TierLate:
		return f.Late
	case TierFinal:
		return f.Final
	default:
		return f.Normal
	}
}

// Schedule is the date-windowed pricing of a class.
// Deadlines are calendar dates (midnight UTC) and are strictly increasing.
type Schedule struct {
	ID             int       `json:"id"`
	Class          string    `json:"class"`
	NormalDeadline time.Time `json:"normal_deadline"`
	LateDeadline   time.Time `json:"late_deadline"`
	FinalDeadline  time.Time `json:"final_deadline"`
	StopAfterFinal bool      `json:"stop_after_final"`
	Fees           Fees      `json:"fees"` // flat fees, used when no CategoryOverride matches
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CategoryOverride replaces a Schedule's flat fees for one applicant category.
type CategoryOverride struct {
	ID         int       `json:"id"`
	ScheduleID int       `json:"schedule_id"`
	Category   string    `json:"category"`
	Fees       Fees      `json:"fees"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Quote struct {
	Amount int  `json:"amount"`
	Tier   Tier `json:"tier"`
}

// ScheduleInput contains information needed to configure a class Schedule.
type ScheduleInput struct {
	Class          string `json:"class" validate:"required"`
	NormalDeadline string `json:"normal_deadline" validate:"required,date"`
	LateDeadline   string `json:"late_deadline" validate:"required,date"`
	FinalDeadline  string `json:"final_deadline" validate:"required,date"`
	StopAfterFinal bool   `json:"stop_after_final"`
	Fees           Fees   `json:"fees"`
}

// Validate checks the input and parses it into a Schedule.
func (in *ScheduleInput) Validate(validate *validator.Validate) (Schedule, error) {
	in.Class = core.CleanString(in.Class)
	if err := validate.Struct(in); err != nil {
		return Schedule{}, err
	}

	// already validated by the "date" tag
	normal, _ := core.ParseDate(in.NormalDeadline)
	late, _ := core.ParseDate(in.LateDeadline)
	final, _ := core.ParseDate(in.FinalDeadline)

	sched := Schedule{
		Class:          in.Class,
		NormalDeadline: normal,
		LateDeadline:   late,
		FinalDeadline:  final,
		StopAfterFinal: in.StopAfterFinal,
		Fees:           in.Fees,
	}
	if err := sched.checkDeadlines(); err != nil {
		return Schedule{}, err
	}
	return sched, nil
}

func (s Schedule) checkDeadlines() error {
	var flds []core.FieldError
	if !s.NormalDeadline.Before(s.LateDeadline) {
		flds = append(flds, core.FieldError{Field: "late_deadline", Error: "must be after the normal deadline"})
	}
	if !s.LateDeadline.Before(s.FinalDeadline) {
		flds = append(flds, core.FieldError{Field: "final_deadline", Error: "must be after the late deadline"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(ErrInvalidDeadlines, flds...)
	}
	return nil
}
