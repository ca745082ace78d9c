// Package patterns detects behavioral signatures in a user's project history.
// Everything in this package is pure: no I/O, no clocks, no randomness outside
// the seeded metadata estimator.
package patterns

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/inflection"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
)

const (
	// DefaultConfidenceThreshold is the score a finding must exceed to be kept.
	DefaultConfidenceThreshold = 0.6

	weekendMaxLifespanDays = 3.0
	serialStartMaxGapDays  = 3.0
	paralysisMaxLOC        = 100
	paralysisMinActiveDays = 14
	scopeMinLibraries      = 5
	scopeMinFiles          = 20
	frameworkMinDistinct   = 3
	frameworkMinProjects   = 3
	minQualifyingProjects  = 2
)

// MetadataByProject indexes project metadata by project id. Missing entries
// are treated as zero-valued metadata.
type MetadataByProject map[uuid.UUID]*models.ProjectMetadata

// Options tunes a Detector.
type Options struct {
	// ConfidenceThreshold drops findings whose confidence is at or below it.
	ConfidenceThreshold float64
	// EstimatedConfidenceFactor scales findings that rest on estimated metadata.
	// 1.0 records provenance without discounting.
	EstimatedConfidenceFactor float64
}

// DefaultOptions returns the production detection settings.
func DefaultOptions() Options {
	return Options{
		ConfidenceThreshold:       DefaultConfidenceThreshold,
		EstimatedConfidenceFactor: 1.0,
	}
}

// Detector runs every heuristic over a project history.
type Detector struct {
	opts Options
}

// NewDetector creates a Detector. Zero-valued options fall back to defaults.
func NewDetector(opts Options) *Detector {
	if opts.ConfidenceThreshold <= 0 {
		opts.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if opts.EstimatedConfidenceFactor <= 0 || opts.EstimatedConfidenceFactor > 1 {
		opts.EstimatedConfidenceFactor = 1.0
	}
	return &Detector{opts: opts}
}

// Detect returns the findings that clear the confidence threshold, ordered by
// descending confidence.
func (d *Detector) Detect(projects []*models.Project, metadata MetadataByProject) []models.PatternFinding {
	findings := DetectCandidates(projects, metadata)

	for i := range findings {
		if d.opts.EstimatedConfidenceFactor < 1 && usesEstimatedMetadata(findings[i], metadata) {
			findings[i].Confidence = round(findings[i].Confidence*d.opts.EstimatedConfidenceFactor, 3)
			findings[i].Metadata["provenance_discount"] = d.opts.EstimatedConfidenceFactor
		}
	}

	kept := FilterByConfidence(findings, d.opts.ConfidenceThreshold)
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Confidence > kept[j].Confidence
	})
	return kept
}

// DetectCandidates runs all detectors and returns every finding with a
// positive confidence, before thresholding.
func DetectCandidates(projects []*models.Project, metadata MetadataByProject) []models.PatternFinding {
	if len(projects) == 0 {
		return nil
	}

	detectors := []func([]*models.Project, MetadataByProject) *models.PatternFinding{
		detectWeekendWarrior,
		detectFrameworkHopper,
		detectProgressiveLearner,
		detectSerialStarter,
		detectPerfectionistParalysis,
		detectScopeCreeper,
	}

	var findings []models.PatternFinding
	for _, detect := range detectors {
		if f := detect(projects, metadata); f != nil && f.Confidence > 0 {
			findings = append(findings, *f)
		}
	}
	return findings
}

// FilterByConfidence keeps findings whose confidence is strictly above threshold.
func FilterByConfidence(findings []models.PatternFinding, threshold float64) []models.PatternFinding {
	kept := make([]models.PatternFinding, 0, len(findings))
	for _, f := range findings {
		if f.Confidence > threshold {
			kept = append(kept, f)
		}
	}
	return kept
}

func detectWeekendWarrior(projects []*models.Project, _ MetadataByProject) *models.PatternFinding {
	var qualifying []*models.Project
	var totalLifespan float64
	for _, p := range projects {
		if !isWeekendStart(p.CreatedAt) {
			continue
		}
		lifespan := p.LifespanDays()
		if lifespan <= weekendMaxLifespanDays {
			qualifying = append(qualifying, p)
			totalLifespan += lifespan
		}
	}
	if len(qualifying) < minQualifyingProjects {
		return nil
	}

	total := len(projects)
	ratio := float64(len(qualifying)) / float64(total)
	return &models.PatternFinding{
		PatternName:        models.PatternWeekendWarrior,
		Confidence:         math.Min(0.95, ratio*1.2),
		SupportingProjects: projectIDs(qualifying),
		Metadata: models.Evidence{
			"weekend_projects":     len(qualifying),
			"total_projects":       total,
			"avg_weekend_lifespan": round(totalLifespan/float64(len(qualifying)), 1),
		},
		EvidenceText: fmt.Sprintf("%d%% of your %s started on a weekend and died within %d days.",
			percent(ratio), plural(total, "project"), int(weekendMaxLifespanDays)),
	}
}

// isWeekendStart reports whether t falls on Friday through Sunday in UTC.
func isWeekendStart(t time.Time) bool {
	switch t.UTC().Weekday() {
	case time.Friday, time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}

func detectFrameworkHopper(projects []*models.Project, _ MetadataByProject) *models.PatternFinding {
	if len(projects) < frameworkMinProjects {
		return nil
	}

	frontends := map[string]bool{}
	backends := map[string]bool{}
	var supporting []*models.Project
	for _, p := range projects {
		used := false
		for _, tag := range p.TechStack {
			name, ok := CanonicalFramework(tag)
			if !ok {
				continue
			}
			used = true
			if IsFrontend(name) {
				frontends[name] = true
			} else {
				backends[name] = true
			}
		}
		if used {
			supporting = append(supporting, p)
		}
	}

	if len(frontends) < frameworkMinDistinct && len(backends) < frameworkMinDistinct {
		return nil
	}

	total := len(projects)
	distinct := max(len(frontends), len(backends))
	uniqueFrontends := sortedKeys(frontends)
	uniqueBackends := sortedKeys(backends)
	return &models.PatternFinding{
		PatternName:        models.PatternFrameworkHopper,
		Confidence:         math.Min(0.90, float64(distinct)/float64(total)),
		SupportingProjects: projectIDs(supporting),
		Metadata: models.Evidence{
			"unique_frontends": uniqueFrontends,
			"unique_backends":  uniqueBackends,
			"total_projects":   total,
		},
		EvidenceText: fmt.Sprintf("You've used %s (%s) and %s across %s.",
			plural(len(uniqueFrontends), "frontend framework"), strings.Join(uniqueFrontends, ", "),
			plural(len(uniqueBackends), "backend framework"), plural(total, "project")),
	}
}

func detectProgressiveLearner(projects []*models.Project, _ MetadataByProject) *models.PatternFinding {
	core, display, supporting := coreTechnology(projects)
	if core == "" || len(supporting) < minQualifyingProjects {
		return nil
	}

	total := len(projects)
	var tags int
	for _, p := range projects {
		tags += len(p.TechStack)
	}
	avgStack := float64(tags) / float64(total)
	if avgStack <= 1.5 {
		return nil
	}

	return &models.PatternFinding{
		PatternName:        models.PatternProgressiveLearner,
		Confidence:         math.Min(0.85, float64(len(supporting))/float64(total)*1.1),
		SupportingProjects: projectIDs(supporting),
		Metadata: models.Evidence{
			"core_framework":      display,
			"consistent_projects": len(supporting),
			"avg_stack_size":      round(avgStack, 1),
		},
		EvidenceText: fmt.Sprintf("You built on %s in %s while adding complementary tools (avg %.1f technologies per project).",
			display, plural(len(supporting), "project"), avgStack),
	}
}

// coreTechnology returns the most frequently used tag (by number of projects
// using it), its first-seen spelling and the projects that use it. Ties go to
// the alphabetically first key so the result is deterministic.
func coreTechnology(projects []*models.Project) (string, string, []*models.Project) {
	counts := map[string]int{}
	spelling := map[string]string{}
	for _, p := range projects {
		seen := map[string]bool{}
		for _, tag := range p.TechStack {
			key := canonicalTag(tag)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			counts[key]++
			if _, ok := spelling[key]; !ok {
				if name, isFramework := CanonicalFramework(tag); isFramework {
					spelling[key] = name
				} else {
					spelling[key] = strings.TrimSpace(tag)
				}
			}
		}
	}

	var core string
	for key, n := range counts {
		if core == "" || n > counts[core] || (n == counts[core] && key < core) {
			core = key
		}
	}
	if core == "" {
		return "", "", nil
	}

	var supporting []*models.Project
	for _, p := range projects {
		for _, tag := range p.TechStack {
			if canonicalTag(tag) == core {
				supporting = append(supporting, p)
				break
			}
		}
	}
	return core, spelling[core], supporting
}

func detectSerialStarter(projects []*models.Project, _ MetadataByProject) *models.PatternFinding {
	if len(projects) < 2 {
		return nil
	}

	sorted := sortedByCreation(projects)
	var quickStarts []*models.Project
	var totalGap float64
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].CreatedAt.Sub(sorted[i-1].DeathDate).Hours() / 24
		if gap <= serialStartMaxGapDays {
			quickStarts = append(quickStarts, sorted[i])
			totalGap += gap
		}
	}
	if len(quickStarts) < minQualifyingProjects {
		return nil
	}

	count := len(quickStarts)
	return &models.PatternFinding{
		PatternName:        models.PatternSerialStarter,
		Confidence:         math.Min(0.90, float64(count)/float64(len(projects)-1)*1.1),
		SupportingProjects: projectIDs(quickStarts),
		Metadata: models.Evidence{
			"quick_starts": count,
			"avg_gap_days": round(totalGap/float64(count), 1),
		},
		EvidenceText: fmt.Sprintf("You started a new project within %d days of abandoning the previous one %s.",
			int(serialStartMaxGapDays), plural(count, "time")),
	}
}

func detectPerfectionistParalysis(projects []*models.Project, metadata MetadataByProject) *models.PatternFinding {
	var qualifying []*models.Project
	var totalDays, totalLOC int
	for _, p := range projects {
		meta := metadata[p.ID]
		if meta == nil {
			continue
		}
		if meta.HasReadme && meta.EstimatedLinesOfCode <= paralysisMaxLOC && meta.TotalDaysActive >= paralysisMinActiveDays {
			qualifying = append(qualifying, p)
			totalDays += meta.TotalDaysActive
			totalLOC += meta.EstimatedLinesOfCode
		}
	}
	if len(qualifying) < minQualifyingProjects {
		return nil
	}

	n := len(qualifying)
	avgLOC := float64(totalLOC) / float64(n)
	return &models.PatternFinding{
		PatternName:        models.PatternPerfectionistParalysis,
		Confidence:         math.Min(0.85, float64(n)/float64(len(projects))*1.2),
		SupportingProjects: projectIDs(qualifying),
		Metadata: models.Evidence{
			"paralysis_projects": n,
			"avg_planning_days":  round(float64(totalDays)/float64(n), 1),
			"avg_lines_of_code":  round(avgLOC, 0),
		},
		EvidenceText: fmt.Sprintf("%s had documentation but minimal code (%d lines on average).",
			plural(n, "project"), int(math.Round(avgLOC))),
	}
}

func detectScopeCreeper(projects []*models.Project, metadata MetadataByProject) *models.PatternFinding {
	var qualifying []*models.Project
	var totalFiles int
	for _, p := range projects {
		if p.DeathCause != models.DeathCauseOverScoped {
			continue
		}
		meta := metadata[p.ID]
		if meta == nil {
			continue
		}
		if meta.LibrariesCount > scopeMinLibraries && meta.FilesCount > scopeMinFiles {
			qualifying = append(qualifying, p)
			totalFiles += meta.FilesCount
		}
	}
	if len(qualifying) < minQualifyingProjects {
		return nil
	}

	n := len(qualifying)
	avgFiles := float64(totalFiles) / float64(n)
	return &models.PatternFinding{
		PatternName:        models.PatternScopeCreeper,
		Confidence:         math.Min(0.90, float64(n)/float64(len(projects))*1.3),
		SupportingProjects: projectIDs(qualifying),
		Metadata: models.Evidence{
			"scope_creep_projects": n,
			"avg_files":            round(avgFiles, 1),
		},
		EvidenceText: fmt.Sprintf("%s died from scope creep with %d files on average.",
			plural(n, "project"), int(math.Round(avgFiles))),
	}
}

// usesEstimatedMetadata reports whether a finding depends on metadata and any
// of its supporting projects only has estimated metadata.
func usesEstimatedMetadata(f models.PatternFinding, metadata MetadataByProject) bool {
	if f.PatternName != models.PatternPerfectionistParalysis && f.PatternName != models.PatternScopeCreeper {
		return false
	}
	for _, id := range f.SupportingProjects {
		if metadata[id].IsEstimated() {
			return true
		}
	}
	return false
}

func sortedByCreation(projects []*models.Project) []*models.Project {
	sorted := make([]*models.Project, len(projects))
	copy(sorted, projects)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted
}

func projectIDs(projects []*models.Project) []uuid.UUID {
	ids := make([]uuid.UUID, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	return ids
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %s", n, inflection.Plural(word))
}

func percent(ratio float64) int {
	return int(math.Round(ratio * 100))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
