// Package models contains domain types for ekaya-graveyard.
package models

import (
	"time"

	"github.com/google/uuid"
)

// DeathCause records why a project was abandoned.
type DeathCause string

const (
	DeathCauseLostInterest          DeathCause = "lost_interest"
	DeathCauseOverScoped            DeathCause = "over_scoped"
	DeathCauseBetterSolutionExisted DeathCause = "better_solution_existed"
	DeathCauseTechnicalRoadblock    DeathCause = "technical_roadblock"
	DeathCauseLifeGotInWay          DeathCause = "life_got_in_way"
	DeathCauseOther                 DeathCause = "other"
)

// IsValid returns true if the cause is one of the known values.
func (c DeathCause) IsValid() bool {
	switch c {
	case DeathCauseLostInterest, DeathCauseOverScoped, DeathCauseBetterSolutionExisted,
		DeathCauseTechnicalRoadblock, DeathCauseLifeGotInWay, DeathCauseOther:
		return true
	default:
		return false
	}
}

// Humanize returns the cause with underscores replaced by spaces, for prompts.
func (c DeathCause) Humanize() string {
	out := []byte(c)
	for i := range out {
		if out[i] == '_' {
			out[i] = ' '
		}
	}
	return string(out)
}

// RevivalStatus tracks whether a buried project came back to life.
type RevivalStatus string

const (
	RevivalStatusBuried   RevivalStatus = "buried"
	RevivalStatusReviving RevivalStatus = "reviving"
	RevivalStatusRevived  RevivalStatus = "revived"
)

// IsValid returns true if the status is one of the known values.
func (s RevivalStatus) IsValid() bool {
	switch s {
	case RevivalStatusBuried, RevivalStatusReviving, RevivalStatusRevived:
		return true
	default:
		return false
	}
}

// Project is an abandoned personal project logged by a user.
// Stored in graveyard_projects. Core facts are immutable after creation,
// RevivalStatus, Description and Epitaph may be edited.
type Project struct {
	ID            uuid.UUID     `json:"id"`
	UserID        uuid.UUID     `json:"user_id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	DeathDate     time.Time     `json:"death_date"`
	DeathCause    DeathCause    `json:"death_cause"`
	TechStack     []string      `json:"tech_stack"`
	Epitaph       string        `json:"epitaph,omitempty"`
	RevivalStatus RevivalStatus `json:"revival_status"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// LifespanDays returns the number of days between creation and death.
// A death date before the creation date yields zero.
func (p *Project) LifespanDays() float64 {
	days := p.DeathDate.Sub(p.CreatedAt).Hours() / 24
	if days < 0 {
		return 0
	}
	return days
}

// IsRevived returns true if the project was revived or is being revived.
func (p *Project) IsRevived() bool {
	return p.RevivalStatus == RevivalStatusRevived || p.RevivalStatus == RevivalStatusReviving
}
