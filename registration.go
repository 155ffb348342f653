package clinicAuth

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/MrEthical07/clinicAuth/api"
)

var draftValidator = newDraftValidator()

func newDraftValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return validPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("channel", func(fl validator.FieldLevel) bool {
		return api.Channel(fl.Field().String()).Valid()
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// validPhone accepts an optional leading +, then digits with spaces, dashes,
// dots or parentheses, carrying 7 to 15 digits in total.
func validPhone(s string) bool {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "+")
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 7 && digits <= 15
}

func validate(v any, fields ...string) error {
	var err error
	if len(fields) == 0 {
		err = draftValidator.Struct(v)
	} else {
		err = draftValidator.StructPartial(v, fields...)
	}
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidation, validationMessage(err))
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid registration"
	}

	fe := fieldErrs[0]
	field := fe.Field()
	switch fe.ActualTag() {
	case "required":
		return field + " is required"
	case "notblank":
		return field + " must not be blank"
	case "email":
		return field + " must be a valid email"
	case "phone":
		return field + " must be a valid phone number"
	case "datetime":
		return field + " must be a date in YYYY-MM-DD form"
	case "channel":
		return field + " must be sms or email"
	case "oneof":
		return field + " must be one of [" + fe.Param() + "]"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	default:
		return field + " is invalid"
	}
}

// PatientIdentity is step 1 of patient registration.
type PatientIdentity struct {
	HealthCardNumber string
	ClinicID         string
}

// PatientDetails is step 2 of patient registration.
type PatientDetails struct {
	FirstName   string
	LastName    string
	DateOfBirth string // YYYY-MM-DD
	Sex         string
	Pronouns    string
}

// PatientContact is step 3 of patient registration.
type PatientContact struct {
	Email   string
	Phone   string
	Channel Channel
}

// RegistrationDraft accumulates a new-patient registration across three steps.
// Each step validates only its own fields; [RegistrationDraft.Validate] checks
// that every step is complete before the draft may be submitted.
//
// A RegistrationDraft is not safe for concurrent use.
type RegistrationDraft struct {
	HealthCardNumber string  `json:"healthCardNumber" validate:"required,notblank,max=32"`
	ClinicID         string  `json:"clinicId" validate:"required,notblank"`
	FirstName        string  `json:"firstName" validate:"required,notblank,max=100"`
	LastName         string  `json:"lastName" validate:"required,notblank,max=100"`
	DateOfBirth      string  `json:"dateOfBirth" validate:"required,datetime=2006-01-02"`
	Sex              string  `json:"sex" validate:"required,notblank"`
	Pronouns         string  `json:"pronouns" validate:"max=40"`
	Email            string  `json:"email" validate:"required,email"`
	Phone            string  `json:"phone" validate:"required,phone"`
	OTPChannel       Channel `json:"otpChannel" validate:"required,channel"`

	steps [3]bool
}

// NewRegistrationDraft starts a draft. healthCard is usually the lookup key
// that was not found; it may be changed again in step 1.
func NewRegistrationDraft(healthCard string) *RegistrationDraft {
	return &RegistrationDraft{HealthCardNumber: strings.TrimSpace(healthCard)}
}

// SetIdentity records step 1. Invalid input is kept but the step stays
// incomplete.
func (d *RegistrationDraft) SetIdentity(in PatientIdentity) error {
	d.HealthCardNumber = strings.TrimSpace(in.HealthCardNumber)
	d.ClinicID = strings.TrimSpace(in.ClinicID)
	err := validate(d, "HealthCardNumber", "ClinicID")
	d.steps[0] = err == nil
	return err
}

// SetDetails records step 2.
func (d *RegistrationDraft) SetDetails(in PatientDetails) error {
	d.FirstName = strings.TrimSpace(in.FirstName)
	d.LastName = strings.TrimSpace(in.LastName)
	d.DateOfBirth = strings.TrimSpace(in.DateOfBirth)
	d.Sex = strings.TrimSpace(in.Sex)
	d.Pronouns = strings.TrimSpace(in.Pronouns)
	err := validate(d, "FirstName", "LastName", "DateOfBirth", "Sex", "Pronouns")
	d.steps[1] = err == nil
	return err
}

// SetContact records step 3.
func (d *RegistrationDraft) SetContact(in PatientContact) error {
	d.Email = strings.TrimSpace(in.Email)
	d.Phone = strings.TrimSpace(in.Phone)
	d.OTPChannel = in.Channel
	err := validate(d, "Email", "Phone", "OTPChannel")
	d.steps[2] = err == nil
	return err
}

// Complete reports whether all three steps were recorded successfully.
func (d *RegistrationDraft) Complete() bool {
	return d != nil && d.steps[0] && d.steps[1] && d.steps[2]
}

// Validate reports whether the draft can be submitted.
func (d *RegistrationDraft) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: registration is required", ErrValidation)
	}
	for i, done := range d.steps {
		if !done {
			return fmt.Errorf("%w: registration step %d is incomplete", ErrValidation, i+1)
		}
	}
	return validate(d)
}

func (d *RegistrationDraft) LookupKey() string { return d.HealthCardNumber }

func (d *RegistrationDraft) Channel() api.Channel { return d.OTPChannel }

func (d *RegistrationDraft) request() api.PatientRegistration {
	return api.PatientRegistration{
		HealthCardNumber: d.HealthCardNumber,
		ClinicID:         d.ClinicID,
		FirstName:        d.FirstName,
		LastName:         d.LastName,
		DateOfBirth:      d.DateOfBirth,
		Sex:              d.Sex,
		Pronouns:         d.Pronouns,
		Email:            d.Email,
		Phone:            d.Phone,
		OTPChannel:       d.OTPChannel,
	}
}

// AdminRegistrationDraft is the single-step clinic admin sign-up form.
type AdminRegistrationDraft struct {
	Username   string  `json:"username" validate:"required,notblank,max=64"`
	FirstName  string  `json:"firstName" validate:"required,notblank,max=100"`
	LastName   string  `json:"lastName" validate:"required,notblank,max=100"`
	Email      string  `json:"email" validate:"required,email"`
	Phone      string  `json:"phone" validate:"required,phone"`
	OTPChannel Channel `json:"otpChannel" validate:"required,channel"`
}

func (d *AdminRegistrationDraft) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: registration is required", ErrValidation)
	}
	return validate(d)
}

// LookupKey is the trimmed username used for later resends.
func (d *AdminRegistrationDraft) LookupKey() string {
	return strings.TrimSpace(d.Username)
}

func (d *AdminRegistrationDraft) Channel() api.Channel { return d.OTPChannel }

func (d *AdminRegistrationDraft) request() api.AdminRegistration {
	return api.AdminRegistration{
		Username:   d.LookupKey(),
		FirstName:  strings.TrimSpace(d.FirstName),
		LastName:   strings.TrimSpace(d.LastName),
		Email:      strings.TrimSpace(d.Email),
		Phone:      strings.TrimSpace(d.Phone),
		OTPChannel: d.OTPChannel,
	}
}
