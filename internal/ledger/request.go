package ledger

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"fest-ledger/internal/apperr"
)

// Request is the one canonical registration payload. The HTTP layer decodes
// into it directly.
type Request struct {
	EventName    string   `json:"eventName" validate:"required,max=100"`
	SubEventName string   `json:"subEventName" validate:"required,max=100"`
	Name         string   `json:"name" validate:"required,max=200"`
	Email        string   `json:"email" validate:"required,email,max=254"`
	Phone        string   `json:"phone" validate:"required,phone10"`
	College      string   `json:"college" validate:"required,max=200"`
	Year         string   `json:"year" validate:"required,max=20"`
	TeamName     string   `json:"teamName,omitempty" validate:"max=200"`
	TeamMembers  []string `json:"teamMembers,omitempty" validate:"max=50,dive,required,max=200,excludesall=0x2C"`
	TeamSize     int      `json:"teamSize,omitempty" validate:"gte=0,lte=100"`
	// EntryFee is what the client displayed; when sent it must match the
	// catalog fee.
	EntryFee *int64 `json:"entryFee,omitempty" validate:"omitempty,gte=0"`
}

func (r *Request) normalize() {
	r.EventName = strings.TrimSpace(r.EventName)
	r.SubEventName = strings.TrimSpace(r.SubEventName)
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.College = strings.TrimSpace(r.College)
	r.Year = strings.TrimSpace(r.Year)
	r.TeamName = strings.TrimSpace(r.TeamName)

	members := r.TeamMembers[:0:0]
	for _, m := range r.TeamMembers {
		if m = strings.TrimSpace(m); m != "" {
			members = append(members, m)
		}
	}
	r.TeamMembers = members
}

var phoneRe = regexp.MustCompile(`^[0-9]{10}$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})
	return v
}

// validationError turns the first validator failure into an apperr
// validation error naming the JSON field.
func validationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return apperr.Validation("request", err.Error())
	}
	fe := ve[0]
	// list elements are reported as teamMembers[1]
	field, _, _ := strings.Cut(fe.Field(), "[")
	switch fe.Tag() {
	case "required":
		return apperr.Validation(field, "is required")
	case "email":
		return apperr.Validation(field, "must be a valid email address")
	case "phone10":
		return apperr.Validation(field, "must be exactly 10 digits")
	case "max":
		return apperr.Validation(field, "must be at most "+fe.Param()+" long")
	case "excludesall":
		return apperr.Validation(field, "must not contain commas")
	case "gte", "lte":
		return apperr.Validation(field, "is out of range")
	default:
		return apperr.Validation(field, "is invalid ("+fe.Tag()+")")
	}
}
