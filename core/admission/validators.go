package admission

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/admissions/core"
)

var (
	// custom validation tags & texts
	categoryTag    = "category"
	categoryText   = "{0} is not a valid category"
	testCenterTag  = "testcenter"
	testCenterText = "{0} is not a valid test center"
	classTag       = "class"
	classText      = "{0} must be one of VIII, XI"

	errShaheedStatusRequired = "please specify whether shaheed (yes/no)"
	errShaheedInRequired     = "please specify 'shaheed in' details"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(categoryTag, categoryValidation)
	core.RegisterCustomTranslation(validate, translator, categoryTag, categoryText)

	_ = validate.RegisterValidation(testCenterTag, testCenterValidation)
	core.RegisterCustomTranslation(validate, translator, testCenterTag, testCenterText)

	_ = validate.RegisterValidation(classTag, classValidation)
	core.RegisterCustomTranslation(validate, translator, classTag, classText)
}

// NewApplication contains information needed to start an application.
type NewApplication struct {
	Class Class  `json:"class" validate:"required,class"`
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
}

// Details is the applicant's form.
type Details struct {
	Category      string `json:"category" validate:"required,category"`
	Name          string `json:"name" validate:"required,max=100"`
	FatherName    string `json:"father_name" validate:"required,max=100"`
	DateOfBirth   string `json:"dob" validate:"required,date"`
	TestCenter    string `json:"test_center" validate:"required,testcenter"`
	Email         string `json:"email" validate:"omitempty,email"`
	Mobile        string `json:"mobile" validate:"required,phone"`
	ShaheedStatus string `json:"shaheed_status" validate:"omitempty,oneof=yes no"`
	ShaheedIn     string `json:"shaheed_in" validate:"omitempty,oneof=in_service war_op accidental"`
}

func (d *Details) Validate(validate *validator.Validate, class Class, now time.Time) error {
	d.Category = core.CleanString(d.Category, true /* lower */)
	d.Name = core.CleanString(d.Name)
	d.FatherName = core.CleanString(d.FatherName)
	d.TestCenter = core.CleanString(d.TestCenter)
	d.Email = core.CleanString(d.Email, true /* lower */)
	d.Mobile = core.CleanString(d.Mobile)
	d.ShaheedStatus = core.CleanString(d.ShaheedStatus, true /* lower */)
	d.ShaheedIn = core.CleanString(d.ShaheedIn, true /* lower */)

	if err := validate.Struct(d); err != nil {
		return err
	}

	if retiredCategories[d.Category] {
		if d.ShaheedStatus == "" {
			return core.NewFieldError("shaheed_status", errShaheedStatusRequired)
		}
		if d.ShaheedStatus == ShaheedYes && d.ShaheedIn == "" {
			return core.NewFieldError("shaheed_in", errShaheedInRequired)
		}
	}

	dob, _ := core.ParseDate(d.DateOfBirth) // checked by the "date" tag
	return CheckAge(class, dob, now)
}

func (na *NewApplication) Validate(validate *validator.Validate) error {
	na.Name = core.CleanString(na.Name)
	na.Email = core.CleanString(na.Email, true /* lower */)
	return validate.Struct(na)
}

// Custom Validators

func categoryValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	for _, c := range Categories {
		if c.Value == val {
			return true
		}
	}
	return false
}

func testCenterValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	for _, tc := range TestCenters {
		if tc == val {
			return true
		}
	}
	return false
}

func classValidation(fl validator.FieldLevel) bool {
	return Class(fl.Field().String()).Valid()
}
