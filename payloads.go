package climb

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// MaxPasswordLength is the longest password bcrypt will fully consume
const MaxPasswordLength = 72

const dateLayout = "2006-01-02"

// RegisterPayload is the registration request body
type RegisterPayload struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	DateOfBirth   string `json:"dateOfBirth"`
	ClimbingLevel string `json:"climbingLevel"`
}

// Validate will validate the payload
func (r RegisterPayload) Validate() error {
	return validatePayload("invalid registration payload", func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
			validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
			validation.Field(&r.Password, validation.Required, validation.Length(6, MaxPasswordLength)),
			validation.Field(&r.DateOfBirth, validation.Required, validation.By(validDate)),
			validation.Field(&r.ClimbingLevel, validation.In(stringsToAny(ClimbingLevels)...)),
		)
	})
}

// User maps the payload onto a new user profile
func (r RegisterPayload) User() *User {
	dob, _ := parseDate(r.DateOfBirth)
	return &User{
		Name:          r.Name,
		Email:         r.Email,
		DateOfBirth:   dob,
		ClimbingLevel: r.ClimbingLevel,
	}
}

// LoginPayload is the login request body
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will validate the payload
func (r LoginPayload) Validate() error {
	return validatePayload("missing credentials", func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Email, validation.Required),
			validation.Field(&r.Password, validation.Required),
		)
	})
}

// ProfilePayload holds the editable profile fields
type ProfilePayload struct {
	Name          string `json:"name"`
	DateOfBirth   string `json:"dateOfBirth"`
	ClimbingLevel string `json:"climbingLevel"`
}

// Validate will validate the payload
func (r ProfilePayload) Validate() error {
	return validatePayload("invalid profile payload", func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
			validation.Field(&r.DateOfBirth, validation.Required, validation.By(validDate)),
			validation.Field(&r.ClimbingLevel, validation.Required, validation.In(stringsToAny(ClimbingLevels)...)),
		)
	})
}

// Apply copies the payload onto user
func (r ProfilePayload) Apply(user *User) {
	dob, _ := parseDate(r.DateOfBirth)
	user.Name = r.Name
	user.DateOfBirth = dob
	user.ClimbingLevel = r.ClimbingLevel
}

// ChangePasswordPayload is the authenticated password change body
type ChangePasswordPayload struct {
	CurrentPassword string `json:"currentPassword"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Validate will validate the payload
func (r ChangePasswordPayload) Validate() error {
	return validatePayload("invalid password change payload", func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.CurrentPassword, validation.Required),
			validation.Field(&r.Password, validation.Required, validation.Length(6, MaxPasswordLength)),
			validation.Field(
				&r.ConfirmPassword,
				validation.Required,
				validation.By(ValidateStringEquals(r.Password)),
			),
		)
	})
}

// PasswordResetRequestPayload starts a password reset
type PasswordResetRequestPayload struct {
	Email string `json:"email"`
}

// Validate will validate the payload
func (r PasswordResetRequestPayload) Validate() error {
	return validatePayload("invalid password reset payload", func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Email, validation.Required, is.Email),
		)
	})
}

// PasswordResetVerifyPayload completes a password reset
type PasswordResetVerifyPayload struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Validate will validate the payload
func (r PasswordResetVerifyPayload) Validate() error {
	return validatePayload("invalid password reset payload", func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Password, validation.Required, validation.Length(6, MaxPasswordLength)),
			validation.Field(
				&r.ConfirmPassword,
				validation.Required,
				validation.By(ValidateStringEquals(r.Password)),
			),
		)
	})
}

// SessionClimbPayload is one route attempted during a session
type SessionClimbPayload struct {
	Route     string `json:"route"`
	Attempts  *int   `json:"attempts"`
	Completed bool   `json:"completed"`
}

// Validate will validate the payload
func (r SessionClimbPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Route, validation.Required, is.UUID),
		validation.Field(&r.Attempts, validation.NotNil, validation.Min(0)),
	)
}

// SessionPayload is the create and update body for sessions. The owner is
// never read from the payload.
type SessionPayload struct {
	Date        string                `json:"date"`
	Duration    *int                  `json:"duration"`
	Location    string                `json:"location"`
	Type        string                `json:"type"`
	EnergyLevel int                   `json:"energyLevel"`
	Quality     int                   `json:"quality"`
	Notes       string                `json:"notes"`
	Climbs      []SessionClimbPayload `json:"climbs"`
}

// Validate will validate the payload
func (r SessionPayload) Validate() error {
	return validatePayload("invalid session payload", func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Date, validation.By(validDate)),
			validation.Field(&r.Duration, validation.NotNil, validation.Min(0)),
			validation.Field(&r.Location, validation.Required, validation.Length(1, 200)),
			validation.Field(&r.Type, validation.Required, validation.In(SessionIndoor, SessionOutdoor)),
			validation.Field(&r.EnergyLevel, validation.Required, validation.Min(1), validation.Max(5)),
			validation.Field(&r.Quality, validation.Min(1), validation.Max(5)),
			validation.Field(&r.Climbs),
		)
	})
}

// Session maps the payload onto a session record
func (r SessionPayload) Session() *Session {
	date, _ := parseDate(r.Date)
	record := &Session{
		Date:        date,
		Location:    r.Location,
		Type:        r.Type,
		EnergyLevel: r.EnergyLevel,
		Quality:     r.Quality,
		Notes:       r.Notes,
		Climbs:      make([]SessionClimb, 0, len(r.Climbs)),
	}
	if r.Duration != nil {
		record.Duration = *r.Duration
	}
	for _, c := range r.Climbs {
		climb := SessionClimb{RouteID: c.Route, Completed: c.Completed}
		if c.Attempts != nil {
			climb.Attempts = *c.Attempts
		}
		record.Climbs = append(record.Climbs, climb)
	}
	return record
}

// RoutePayload is the create and update body for routes
type RoutePayload struct {
	Name      string `json:"name"`
	Grade     string `json:"grade"`
	Type      string `json:"type"`
	Location  string `json:"location"`
	Date      string `json:"date"`
	Attempts  *int   `json:"attempts"`
	Completed bool   `json:"completed"`
	Notes     string `json:"notes"`
}

// Validate will validate the payload
func (r RoutePayload) Validate() error {
	return validatePayload("invalid route payload", func() error {
		return validation.ValidateStruct(&r,
			validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
			validation.Field(&r.Grade, validation.Required, validation.Length(1, 20)),
			validation.Field(&r.Type, validation.Required, validation.In(RouteBoulder, RouteSport, RouteTrad)),
			validation.Field(&r.Location, validation.Required, validation.Length(1, 200)),
			validation.Field(&r.Date, validation.Required, validation.By(validDate)),
			validation.Field(&r.Attempts, validation.NotNil, validation.Min(0)),
		)
	})
}

// Route maps the payload onto a route record
func (r RoutePayload) Route() *Route {
	date, _ := parseDate(r.Date)
	record := &Route{
		Name:      r.Name,
		Grade:     r.Grade,
		Type:      r.Type,
		Location:  r.Location,
		Date:      date,
		Completed: r.Completed,
		Notes:     r.Notes,
	}
	if r.Attempts != nil {
		record.Attempts = *r.Attempts
	}
	return record
}

// ValidateStringEquals checks that a field matches str
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

func validDate(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := parseDate(s); err != nil {
		return errors.New("must be a date in YYYY-MM-DD or RFC3339 format")
	}
	return nil
}

// parseDate accepts a calendar date or a full RFC3339 timestamp. An empty
// string yields the zero time.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// validatePayload runs fn and turns ozzo field errors into a validation
// error whose metadata maps each field to its message.
func validatePayload(message string, fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		var internal validation.InternalError
		if errors.As(err, &internal) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "payload validation failed")
		}
		return NewValidationError(message, map[string]string{"payload": err.Error()})
	}

	richErr := goerrors.ValidateWithOzzo(func() error { return err }, message)
	if richErr == nil {
		return NewValidationError(message, flattenFieldErrors("", fieldErrs))
	}

	details := map[string]any{}
	for k, v := range flattenFieldErrors("", fieldErrs) {
		details[k] = v
	}

	return richErr.
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeValidation).
		WithMetadata(details)
}

func flattenFieldErrors(prefix string, errs validation.Errors) map[string]string {
	out := make(map[string]string, len(errs))
	for field, err := range errs {
		if err == nil {
			continue
		}
		key := field
		if prefix != "" {
			key = fmt.Sprintf("%s.%s", prefix, field)
		}
		var nested validation.Errors
		if errors.As(err, &nested) {
			for k, v := range flattenFieldErrors(key, nested) {
				out[k] = v
			}
			continue
		}
		out[key] = err.Error()
	}
	return out
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, ErrNotFound
	}
	return id, nil
}
