package patterns

import (
	"encoding/binary"
	"math"
	"math/rand/v2"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

// EstimateMetadata synthesises metadata for a project that has no measured
// repository facts. The generator is seeded from the project id so repeated
// calls for the same project return the same estimate.
func EstimateMetadata(p *models.Project) *models.ProjectMetadata {
	seed := p.ID
	rng := rand.New(rand.NewPCG(binary.BigEndian.Uint64(seed[:8]), binary.BigEndian.Uint64(seed[8:])))

	days := int(math.Max(1, math.Floor(p.LifespanDays())))
	libraries := len(p.TechStack) + rng.IntN(3)
	loc := rng.IntN(500) + days*20

	return &models.ProjectMetadata{
		ProjectID:            p.ID,
		TotalDaysActive:      days,
		EstimatedLinesOfCode: loc,
		EstimatedCommitCount: int(math.Floor(float64(days) * 2.5)),
		LibrariesCount:       libraries,
		FilesCount:           loc/50 + libraries,
		FirstCommitType:      models.FirstCommitTypes[rng.IntN(len(models.FirstCommitTypes))],
		HasReadme:            rng.Float64() > 0.3,
		HasTests:             rng.Float64() > 0.7,
		HasDocumentation:     rng.Float64() > 0.8,
		Provenance:           models.ProvenanceEstimated,
	}
}
