package patterns

import (
	"math"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

const recentWindow = 3

// LearningVelocity computes trend metrics over a project history.
// An empty history is reported as stable with perfect scores.
func LearningVelocity(projects []*models.Project) models.LearningVelocity {
	v := models.LearningVelocity{
		LifespanTrend:         models.TrendStable,
		ScopeManagementScore:  100,
		TechnologyConsistency: 100,
		CompletionRateTrend:   models.TrendStable,
	}
	if len(projects) == 0 {
		return v
	}

	sorted := sortedByCreation(projects)
	lifespans := make([]float64, len(sorted))
	for i, p := range sorted {
		lifespans[i] = math.Max(1, p.LifespanDays())
	}
	allTime := mean(lifespans)
	recent := mean(lifespans[max(0, len(lifespans)-recentWindow):])
	switch {
	case recent > allTime*1.2:
		v.LifespanTrend = models.TrendImproving
	case recent < allTime*0.8:
		v.LifespanTrend = models.TrendDeclining
	}

	total := float64(len(projects))
	var overScoped int
	distinct := map[string]bool{}
	for _, p := range projects {
		if p.DeathCause == models.DeathCauseOverScoped {
			overScoped++
		}
		for _, tag := range p.TechStack {
			if key := canonicalTag(tag); key != "" {
				distinct[key] = true
			}
		}
		if p.IsRevived() {
			v.CompletionRateTrend = models.TrendImproving
		}
	}

	v.ScopeManagementScore = int(math.Round(math.Max(0, 100-float64(overScoped)/total*100)))
	v.TechnologyConsistency = int(math.Round(math.Max(0, 100-float64(len(distinct))/total*10)))
	return v
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
