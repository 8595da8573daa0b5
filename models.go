package climb

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ClimbingLevel is the self reported experience of a climber
type ClimbingLevel = string

const (
	LevelBeginner     ClimbingLevel = "Beginner"
	LevelIntermediate ClimbingLevel = "Intermediate"
	LevelAdvanced     ClimbingLevel = "Advanced"
	LevelExpert       ClimbingLevel = "Expert"
)

// ClimbingLevels lists the accepted levels in ascending order
var ClimbingLevels = []ClimbingLevel{LevelBeginner, LevelIntermediate, LevelAdvanced, LevelExpert}

// SessionType is where a session took place
type SessionType = string

const (
	SessionIndoor  SessionType = "indoor"
	SessionOutdoor SessionType = "outdoor"
)

// RouteType is the discipline of a logged route
type RouteType = string

const (
	RouteBoulder RouteType = "boulder"
	RouteSport   RouteType = "sport"
	RouteTrad    RouteType = "trad"
)

// DefaultSessionQuality is used when a session is created without a rating
const DefaultSessionQuality = 3

// User is the identity root. PasswordHash and the reset fields never leave
// the process.
type User struct {
	bun.BaseModel        `bun:"table:users,alias:usr"`
	ID                   uuid.UUID     `bun:"id,pk" json:"id"`
	Name                 string        `bun:"name,notnull" json:"name"`
	Email                string        `bun:"email,notnull,unique" json:"email"`
	PasswordHash         string        `bun:"password_hash,notnull" json:"-"`
	DateOfBirth          time.Time     `bun:"date_of_birth,notnull" json:"dateOfBirth"`
	ClimbingLevel        ClimbingLevel `bun:"climbing_level,notnull" json:"climbingLevel"`
	PasswordChangedAt    *time.Time    `bun:"password_changed_at,nullzero" json:"-"`
	PasswordResetToken   string        `bun:"password_reset_token,nullzero" json:"-"`
	PasswordResetExpires *time.Time    `bun:"password_reset_expires,nullzero" json:"-"`
	CreatedAt            time.Time     `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt            time.Time     `bun:"updated_at,notnull" json:"updatedAt"`
}

// ChangedPasswordAfter reports whether the password was changed after the
// given token issue time.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u == nil || u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Before(*u.PasswordChangedAt)
}

// PublicUser is the projection of a user that is safe to return to clients
type PublicUser struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	DateOfBirth   time.Time `json:"dateOfBirth"`
	ClimbingLevel string    `json:"climbingLevel"`
}

// Public returns the client safe projection
func (u *User) Public() PublicUser {
	if u == nil {
		return PublicUser{}
	}
	return PublicUser{
		ID:            u.ID.String(),
		Name:          u.Name,
		Email:         u.Email,
		DateOfBirth:   u.DateOfBirth,
		ClimbingLevel: u.ClimbingLevel,
	}
}

// NormalizeEmail lower cases and trims an email so lookups are case insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SessionClimb is a route attempted during a session
type SessionClimb struct {
	RouteID   string `json:"route"`
	Attempts  int    `json:"attempts"`
	Completed bool   `json:"completed"`
}

// Session is a climbing activity record owned by one user
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`
	ID            uuid.UUID      `bun:"id,pk" json:"id"`
	UserID        uuid.UUID      `bun:"user_id,notnull" json:"user"`
	Date          time.Time      `bun:"date,notnull" json:"date"`
	Duration      int            `bun:"duration,notnull" json:"duration"`
	Location      string         `bun:"location,notnull" json:"location"`
	Type          SessionType    `bun:"type,notnull" json:"type"`
	EnergyLevel   int            `bun:"energy_level,notnull" json:"energyLevel"`
	Quality       int            `bun:"quality,notnull" json:"quality"`
	Notes         string         `bun:"notes" json:"notes,omitempty"`
	Climbs        []SessionClimb `bun:"climbs" json:"climbs"`
	CreatedAt     time.Time      `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt     time.Time      `bun:"updated_at,notnull" json:"updatedAt"`
}

// Route is a logged climb owned by one user
type Route struct {
	bun.BaseModel `bun:"table:routes,alias:rte"`
	ID            uuid.UUID `bun:"id,pk" json:"id"`
	UserID        uuid.UUID `bun:"user_id,notnull" json:"user"`
	Name          string    `bun:"name,notnull" json:"name"`
	Grade         string    `bun:"grade,notnull" json:"grade"`
	Type          RouteType `bun:"type,notnull" json:"type"`
	Location      string    `bun:"location,notnull" json:"location"`
	Date          time.Time `bun:"date,notnull" json:"date"`
	Attempts      int       `bun:"attempts,notnull" json:"attempts"`
	Completed     bool      `bun:"completed,notnull" json:"completed"`
	Notes         string    `bun:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

func prepareUserDefaults(record *User, now time.Time) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	record.Email = NormalizeEmail(record.Email)
	record.Name = strings.TrimSpace(record.Name)

	if record.ClimbingLevel == "" {
		record.ClimbingLevel = LevelBeginner
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
}

func prepareSessionDefaults(record *Session, now time.Time) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Date.IsZero() {
		record.Date = now
	}
	record.Date = record.Date.UTC()
	if record.Quality == 0 {
		record.Quality = DefaultSessionQuality
	}
	if record.Climbs == nil {
		record.Climbs = []SessionClimb{}
	}
	record.Location = strings.TrimSpace(record.Location)
	record.Notes = strings.TrimSpace(record.Notes)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
}

func prepareRouteDefaults(record *Route, now time.Time) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Date.IsZero() {
		record.Date = now
	}
	record.Date = record.Date.UTC()
	record.Name = strings.TrimSpace(record.Name)
	record.Notes = strings.TrimSpace(record.Notes)
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
}
