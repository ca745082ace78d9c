package models

import (
	"time"

	"github.com/google/uuid"
)

// PostMortem is a user's free-text reflection on one dead project.
// Stored in graveyard_post_mortems, at most one per project.
type PostMortem struct {
	ID             uuid.UUID `json:"id"`
	ProjectID      uuid.UUID `json:"project_id"`
	WhatProblem    string    `json:"what_problem,omitempty"`
	WhatWentWrong  string    `json:"what_went_wrong,omitempty"`
	LessonsLearned string    `json:"lessons_learned,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsEmpty returns true if none of the reflection fields were filled in.
func (p *PostMortem) IsEmpty() bool {
	return p.WhatProblem == "" && p.WhatWentWrong == "" && p.LessonsLearned == ""
}
