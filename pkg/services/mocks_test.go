package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-graveyard/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/models"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/patterns"
	"github.com/ekaya-inc/ekaya-graveyard/pkg/repositories"
)

// memStore is an in-memory stand-in for the graveyard tables shared by the
// repository fakes below. writes counts every mutating call.
type memStore struct {
	mu          sync.Mutex
	projects    []*models.Project
	metadata    map[uuid.UUID]*models.ProjectMetadata
	postMortems map[uuid.UUID]*models.PostMortem
	patterns    []*models.UserPattern
	insights    []*models.PatternInsight
	aiInsights  []*models.AIInsight
	pins        []*models.PinnedInsight
	snapshots   []*models.LearningMetricsSnapshot
	writes      int
}

func newMemStore() *memStore {
	return &memStore{
		metadata:    map[uuid.UUID]*models.ProjectMetadata{},
		postMortems: map[uuid.UUID]*models.PostMortem{},
	}
}

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *memStore) activePatternNames() []models.PatternName {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []models.PatternName
	for _, p := range s.patterns {
		if p.IsActive {
			names = append(names, p.PatternName)
		}
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func (s *memStore) activeInsightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, in := range s.insights {
		if in.IsActive {
			n++
		}
	}
	return n
}

// ---- projects ----

type memProjectRepo struct{ s *memStore }

var _ repositories.ProjectRepository = memProjectRepo{}

func (r memProjectRepo) Create(_ context.Context, p *models.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.writes++
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.s.projects = append(r.s.projects, p)
	return nil
}

func (r memProjectRepo) GetByID(_ context.Context, userID, id uuid.UUID) (*models.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.projects {
		if p.ID == id && p.UserID == userID {
			return p, nil
		}
	}
	return nil, fmt.Errorf("project: %w", apperrors.ErrNotFound)
}

func (r memProjectRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Project
	for _, p := range r.s.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memProjectRepo) Update(_ context.Context, p *models.Project) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.writes++
	return nil
}

func (r memProjectRepo) Delete(_ context.Context, userID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, p := range r.s.projects {
		if p.ID == id && p.UserID == userID {
			r.s.writes++
			r.s.projects = append(r.s.projects[:i], r.s.projects[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("project: %w", apperrors.ErrNotFound)
}

// ---- metadata ----

type memMetadataRepo struct {
	s         *memStore
	upsertErr error
}

var _ repositories.ProjectMetadataRepository = (*memMetadataRepo)(nil)

func (r *memMetadataRepo) GetByProjects(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.ProjectMetadata, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[uuid.UUID]*models.ProjectMetadata{}
	for _, id := range ids {
		if md, ok := r.s.metadata[id]; ok {
			out[id] = md
		}
	}
	return out, nil
}

func (r *memMetadataRepo) Upsert(_ context.Context, md *models.ProjectMetadata) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.writes++
	if existing, ok := r.s.metadata[md.ProjectID]; ok && !existing.IsEstimated() && md.IsEstimated() {
		return nil
	}
	r.s.metadata[md.ProjectID] = md
	return nil
}

// fixedMetadata is a MetadataProvider that never estimates.
type fixedMetadata struct{ md patterns.MetadataByProject }

func (f fixedMetadata) MetadataFor(context.Context, []*models.Project) (patterns.MetadataByProject, []models.RowFailure, error) {
	if f.md == nil {
		return patterns.MetadataByProject{}, nil, nil
	}
	return f.md, nil, nil
}

// ---- post-mortems ----

type memPostMortemRepo struct{ s *memStore }

var _ repositories.PostMortemRepository = memPostMortemRepo{}

func (r memPostMortemRepo) Upsert(_ context.Context, pm *models.PostMortem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.writes++
	if existing, ok := r.s.postMortems[pm.ProjectID]; ok {
		pm.ID = existing.ID
	} else if pm.ID == uuid.Nil {
		pm.ID = uuid.New()
	}
	r.s.postMortems[pm.ProjectID] = pm
	return nil
}

func (r memPostMortemRepo) GetByProject(_ context.Context, projectID uuid.UUID) (*models.PostMortem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if pm, ok := r.s.postMortems[projectID]; ok {
		return pm, nil
	}
	return nil, fmt.Errorf("post-mortem: %w", apperrors.ErrNotFound)
}

func (r memPostMortemRepo) GetByProjects(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.PostMortem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[uuid.UUID]*models.PostMortem{}
	for _, id := range ids {
		if pm, ok := r.s.postMortems[id]; ok {
			out[id] = pm
		}
	}
	return out, nil
}

// ---- patterns ----

type memPatternRepo struct{ s *memStore }

var _ repositories.PatternRepository = memPatternRepo{}

func (r memPatternRepo) ListActive(_ context.Context, userID uuid.UUID) ([]*models.UserPattern, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.UserPattern
	for _, p := range r.s.patterns {
		if p.UserID == userID && p.IsActive {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ConfidenceScore != out[j].ConfidenceScore {
			return out[i].ConfidenceScore > out[j].ConfidenceScore
		}
		return out[i].PatternName < out[j].PatternName
	})
	return out, nil
}

func (r memPatternRepo) LatestByName(_ context.Context, userID uuid.UUID) (map[models.PatternName]*models.UserPattern, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[models.PatternName]*models.UserPattern{}
	for _, p := range r.s.patterns {
		if p.UserID == userID {
			out[p.PatternName] = p
		}
	}
	return out, nil
}

func (r memPatternRepo) ReplaceActive(_ context.Context, userID uuid.UUID, rows []*models.UserPattern) ([]*models.UserPattern, []models.RowFailure, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.writes++
	for _, p := range r.s.patterns {
		if p.UserID == userID {
			p.IsActive = false
		}
	}
	var failures []models.RowFailure
	var written []*models.UserPattern
	for _, p := range rows {
		if p.ConfidenceScore > 1 {
			failures = append(failures, models.RowFailure{Kind: "user_pattern", Key: string(p.PatternName), Error: "confidence out of range"})
			continue
		}
		p.UserID = userID
		p.CreatedAt = time.Now()
		r.s.patterns = append(r.s.patterns, p)
		written = append(written, p)
	}
	return written, failures, nil
}

func (r memPatternRepo) DeactivateAll(_ context.Context, userID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.writes++
	var n int64
	for _, p := range r.s.patterns {
		if p.UserID == userID && p.IsActive {
			p.IsActive = false
			n++
		}
	}
	return n, nil
}

// ---- pattern insights ----

type memPatternInsightRepo struct{ s *memStore }

var _ repositories.PatternInsightRepository = memPatternInsightRepo{}

func (r memPatternInsightRepo) ListActive(_ context.Context, userID uuid.UUID, limit int) ([]*models.PatternInsight, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.PatternInsight
	for _, in := range r.s.insights {
		if in.UserID == userID && in.IsActive {
			out = append(out, in)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ConfidenceScore > out[j].ConfidenceScore })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memPatternInsightRepo) GetByID(_ context.Context, userID, id uuid.UUID) (*models.PatternInsight, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, in := range r.s.insights {
		if in.ID == id && in.UserID == userID {
			return in, nil
		}
	}
	return nil, fmt.Errorf("pattern insight: %w", apperrors.ErrNotFound)
}

func (r memPatternInsightRepo) ReplaceActive(_ context.Context, userID uuid.UUID, rows []*models.PatternInsight) ([]*models.PatternInsight, []models.RowFailure, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.writes++
	for _, in := range r.s.insights {
		if in.UserID == userID {
			in.IsActive = false
		}
	}
	for _, in := range rows {
		in.UserID = userID
		in.IsActive = true
		r.s.insights = append(r.s.insights, in)
	}
	return rows, nil, nil
}

func (r memPatternInsightRepo) DeactivateAll(_ context.Context, userID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.writes++
	var n int64
	for _, in := range r.s.insights {
		if in.UserID == userID && in.IsActive {
			in.IsActive = false
			n++
		}
	}
	return n, nil
}

func (r memPatternInsightRepo) SetFeedback(_ context.Context, userID, id uuid.UUID, feedback models.InsightFeedback) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, in := range r.s.insights {
		if in.ID == id && in.UserID == userID {
			r.s.writes++
			in.Feedback = &feedback
			return nil
		}
	}
	return fmt.Errorf("pattern insight: %w", apperrors.ErrNotFound)
}

// ---- AI insights ----

type memAIInsightRepo struct{ s *memStore }

var _ repositories.AIInsightRepository = memAIInsightRepo{}

func (r memAIInsightRepo) ListByProject(_ context.Context, projectID uuid.UUID) ([]*models.AIInsight, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.AIInsight
	for _, in := range r.s.aiInsights {
		if in.ProjectID == projectID {
			out = append(out, in)
		}
	}
	return out, nil
}

func (r memAIInsightRepo) GetForUser(_ context.Context, userID, id uuid.UUID) (*models.AIInsight, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, in := range r.s.aiInsights {
		if in.ID != id {
			continue
		}
		for _, p := range r.s.projects {
			if p.ID == in.ProjectID && p.UserID == userID {
				return in, nil
			}
		}
	}
	return nil, fmt.Errorf("ai insight: %w", apperrors.ErrNotFound)
}

func (r memAIInsightRepo) ReplaceForPostMortem(_ context.Context, postMortemID uuid.UUID, rows []*models.AIInsight) ([]*models.AIInsight, []models.RowFailure, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.writes++
	kept := r.s.aiInsights[:0]
	for _, in := range r.s.aiInsights {
		if in.PostMortemID != postMortemID {
			kept = append(kept, in)
		}
	}
	r.s.aiInsights = append(kept, rows...)
	return rows, nil, nil
}

// ---- pins ----

type memPinRepo struct{ s *memStore }

var _ repositories.PinnedInsightRepository = memPinRepo{}

func (r memPinRepo) Create(_ context.Context, pin *models.PinnedInsight) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.pins {
		if p.UserID == pin.UserID && p.Kind == pin.Kind && p.InsightID() == pin.InsightID() {
			return apperrors.ErrConflict
		}
	}
	r.s.writes++
	r.s.pins = append(r.s.pins, pin)
	return nil
}

func (r memPinRepo) Delete(_ context.Context, userID uuid.UUID, kind models.PinKind, insightID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, p := range r.s.pins {
		if p.UserID == userID && p.Kind == kind && p.InsightID() == insightID {
			r.s.writes++
			r.s.pins = append(r.s.pins[:i], r.s.pins[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("pin: %w", apperrors.ErrNotFound)
}

func (r memPinRepo) List(_ context.Context, userID uuid.UUID, kind *models.PinKind) ([]*models.PinnedInsight, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.PinnedInsight
	for _, p := range r.s.pins {
		if p.UserID == userID && (kind == nil || p.Kind == *kind) {
			out = append(out, p)
		}
	}
	return out, nil
}

// ---- learning metrics ----

type memMetricsRepo struct {
	s       *memStore
	saveErr error
}

var _ repositories.LearningMetricsRepository = (*memMetricsRepo)(nil)

func (r *memMetricsRepo) Save(_ context.Context, snapshot *models.LearningMetricsSnapshot) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.writes++
	r.s.snapshots = append(r.s.snapshots, snapshot)
	return nil
}

func (r *memMetricsRepo) ListRecent(_ context.Context, userID uuid.UUID, limit int) ([]*models.LearningMetricsSnapshot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.LearningMetricsSnapshot
	for i := len(r.s.snapshots) - 1; i >= 0 && len(out) < limit; i-- {
		if r.s.snapshots[i].UserID == userID {
			out = append(out, r.s.snapshots[i])
		}
	}
	return out, nil
}
