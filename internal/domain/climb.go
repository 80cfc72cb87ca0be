package domain

import "time"

// ClimbType enumerates the discipline of a climb.
type ClimbType string

const (
	ClimbSport   ClimbType = "sport"
	ClimbTrad    ClimbType = "trad"
	ClimbBoulder ClimbType = "boulder"
	ClimbTopRope ClimbType = "top_rope"
	ClimbAlpine  ClimbType = "alpine"
)

// ClimbTypes lists every valid ClimbType.
var ClimbTypes = []ClimbType{ClimbSport, ClimbTrad, ClimbBoulder, ClimbTopRope, ClimbAlpine}

// Valid reports whether t is a member of ClimbTypes.
func (t ClimbType) Valid() bool {
	for _, v := range ClimbTypes {
		if v == t {
			return true
		}
	}
	return false
}

// SendType enumerates how a climb was completed (the tick type).
type SendType string

const (
	SendSend    SendType = "send"
	SendAttempt SendType = "attempt"
	SendFlash   SendType = "flash"
	SendOnsight SendType = "onsight"
	SendProject SendType = "project"
)

// SendTypes lists every valid SendType.
var SendTypes = []SendType{SendSend, SendAttempt, SendFlash, SendOnsight, SendProject}

// Valid reports whether s is a member of SendTypes.
func (s SendType) Valid() bool {
	for _, v := range SendTypes {
		if v == s {
			return true
		}
	}
	return false
}

// CsvClimb is the canonical record every import path converges to before
// validation. Optional numeric fields are Scalars so that a value the source
// sent as text reaches the validator intact.
type CsvClimb struct {
	Name     string    `json:"name" validate:"notblank"`
	Grade    string    `json:"grade" validate:"notblank"`
	Type     ClimbType `json:"type" validate:"notblank,oneof=sport trad boulder top_rope alpine"`
	SendType SendType  `json:"send_type" validate:"notblank,oneof=send attempt flash onsight project"`
	Date     string    `json:"date" validate:"notblank,climbdate"`
	Location string    `json:"location" validate:"notblank"`

	Attempts        Scalar   `json:"attempts,omitempty" validate:"omitempty,nonnegint"`
	Rating          Scalar   `json:"rating,omitempty" validate:"omitempty,ratingrange"`
	Notes           string   `json:"notes,omitempty"`
	Duration        Scalar   `json:"duration,omitempty" validate:"omitempty,climbduration"`
	ElevationGain   Scalar   `json:"elevation_gain,omitempty" validate:"omitempty,positivenum"`
	Color           string   `json:"color,omitempty"`
	Gym             string   `json:"gym,omitempty"`
	Country         string   `json:"country,omitempty"`
	Skills          []string `json:"skills,omitempty"`
	PhysicalSkills  []string `json:"physical_skills,omitempty"`
	TechnicalSkills []string `json:"technical_skills,omitempty"`
	Stiffness       Scalar   `json:"stiffness,omitempty" validate:"omitempty,isnumber"`
	StiffnessNote   string   `json:"stiffness_note,omitempty"`
}

// IsBoulder reports whether the record describes a boulder problem.
func (c CsvClimb) IsBoulder() bool {
	return c.Type == ClimbBoulder
}

// Climb is a persisted row of the climbs table.
type Climb struct {
	ID              string    `json:"id" db:"id"`
	UserID          string    `json:"user_id" db:"user_id"`
	SessionID       *string   `json:"session_id,omitempty" db:"session_id"`
	Name            string    `json:"name" db:"name"`
	Grade           string    `json:"grade" db:"grade"`
	Type            ClimbType `json:"type" db:"type"`
	SendType        SendType  `json:"send_type" db:"send_type"`
	Date            time.Time `json:"date" db:"climb_date"`
	Location        string    `json:"location" db:"location"`
	Attempts        *int      `json:"attempts,omitempty" db:"attempts"`
	Rating          *float64  `json:"rating,omitempty" db:"rating"`
	Notes           string    `json:"notes,omitempty" db:"notes"`
	DurationSeconds *int      `json:"duration_seconds,omitempty" db:"duration_seconds"`
	ElevationGain   *float64  `json:"elevation_gain,omitempty" db:"elevation_gain"`
	Color           string    `json:"color,omitempty" db:"color"`
	Gym             string    `json:"gym,omitempty" db:"gym"`
	Country         string    `json:"country,omitempty" db:"country"`
	Skills          []string  `json:"skills" db:"skills"`
	PhysicalSkills  []string  `json:"physical_skills" db:"physical_skills"`
	TechnicalSkills []string  `json:"technical_skills" db:"technical_skills"`
	Stiffness       *float64  `json:"stiffness,omitempty" db:"stiffness"`
	StiffnessNote   string    `json:"stiffness_note,omitempty" db:"stiffness_note"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// DateLayout is the only accepted calendar date format.
const DateLayout = "2006-01-02"
