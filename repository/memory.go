package repository

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"skillmatch/models"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process. Transactions are fully serialized
// and work on a copy that replaces the live data only on commit.
type MemoryStore struct {
	mu   sync.Mutex
	data *memoryData
	now  func() time.Time
}

type memoryData struct {
	users       map[uuid.UUID]models.User
	projects    map[uuid.UUID]models.Project
	teams       map[uuid.UUID]models.Team
	assignments map[uuid.UUID]models.Assignment
	seq         map[uuid.UUID]int64
	next        int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: &memoryData{
			users:       map[uuid.UUID]models.User{},
			projects:    map[uuid.UUID]models.Project{},
			teams:       map[uuid.UUID]models.Team{},
			assignments: map[uuid.UUID]models.Assignment{},
			seq:         map[uuid.UUID]int64{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.data.clone()
	if err := fn(&memoryTx{data: work, now: s.now}); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (d *memoryData) clone() *memoryData {
	out := &memoryData{
		users:       maps.Clone(d.users),
		projects:    maps.Clone(d.projects),
		teams:       maps.Clone(d.teams),
		assignments: make(map[uuid.UUID]models.Assignment, len(d.assignments)),
		seq:         maps.Clone(d.seq),
		next:        d.next,
	}
	for id, a := range d.assignments {
		out.assignments[id] = a.Clone()
	}
	for id, p := range d.projects {
		if p.Metadata != nil {
			p.Metadata = maps.Clone(p.Metadata)
			out.projects[id] = p
		}
	}
	return out
}

type memoryTx struct {
	data *memoryData
	now  func() time.Time
}

// ================== ASSIGNMENTS ==================

func (t *memoryTx) GetAssignment(_ context.Context, id uuid.UUID) (*models.Assignment, error) {
	a, ok := t.data.assignments[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := a.Clone()
	return &out, nil
}

// LockAssignment is a plain read: the store-wide mutex already serializes.
func (t *memoryTx) LockAssignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	return t.GetAssignment(ctx, id)
}

func (t *memoryTx) FindOpenAssignment(_ context.Context, projectID, userID uuid.UUID) (*models.Assignment, error) {
	for _, id := range t.orderedAssignmentIDs() {
		a := t.data.assignments[id]
		if a.ProjectID == projectID && a.BelongsTo(userID) && a.IsOpen() {
			out := a.Clone()
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryTx) CreateAssignment(_ context.Context, a *models.Assignment) error {
	if _, exists := t.data.assignments[a.ID]; exists {
		return ErrDuplicate
	}
	if a.UserID != nil && a.IsOpen() {
		for _, other := range t.data.assignments {
			if other.ProjectID == a.ProjectID && other.BelongsTo(*a.UserID) && other.IsOpen() {
				return ErrDuplicate
			}
		}
	}
	now := t.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	t.data.assignments[a.ID] = a.Clone()
	t.data.next++
	t.data.seq[a.ID] = t.data.next
	return nil
}

func (t *memoryTx) SaveAssignment(_ context.Context, a *models.Assignment) error {
	if _, ok := t.data.assignments[a.ID]; !ok {
		return ErrNotFound
	}
	a.UpdatedAt = t.now()
	t.data.assignments[a.ID] = a.Clone()
	return nil
}

func (t *memoryTx) DeleteAssignments(_ context.Context, ids ...uuid.UUID) error {
	for _, id := range ids {
		delete(t.data.assignments, id)
		delete(t.data.seq, id)
	}
	return nil
}

func (t *memoryTx) HasWinner(_ context.Context, projectID uuid.UUID, exceptTeamID *uuid.UUID) (bool, error) {
	for _, a := range t.data.assignments {
		if a.ProjectID != projectID || !a.IsWinning() {
			continue
		}
		if exceptTeamID != nil && a.InTeam(*exceptTeamID) {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (t *memoryTx) UpdateWhere(_ context.Context, u StatusUpdate) (int64, error) {
	if !u.scoped() {
		return 0, ErrUnscoped
	}
	now := t.now()
	var n int64
	for id, a := range t.data.assignments {
		if !matchesUpdate(a, u) {
			continue
		}
		a.Status = u.To
		if u.Reason != nil {
			reason := *u.Reason
			a.CancelledReason = &reason
		} else {
			a.CancelledReason = nil
		}
		if !keepsToken(u.To) {
			a.InviteTokenHash = nil
		}
		a.UpdatedAt = now
		t.data.assignments[id] = a
		n++
	}
	return n, nil
}

func matchesUpdate(a models.Assignment, u StatusUpdate) bool {
	if u.ProjectID != nil && a.ProjectID != *u.ProjectID {
		return false
	}
	if u.TeamID != nil && !a.InTeam(*u.TeamID) {
		return false
	}
	if u.OutsideTeamID != nil && a.InTeam(*u.OutsideTeamID) {
		return false
	}
	if u.ExcludeID != nil && a.ID == *u.ExcludeID {
		return false
	}
	return len(u.From) == 0 || slices.Contains(u.From, a.Status)
}

func (t *memoryTx) ListAssignments(_ context.Context, f AssignmentFilter) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, id := range t.orderedAssignmentIDs() {
		a := t.data.assignments[id]
		if f.ProjectID != nil && a.ProjectID != *f.ProjectID {
			continue
		}
		if f.TeamID != nil && !a.InTeam(*f.TeamID) {
			continue
		}
		if f.UserID != nil && !a.BelongsTo(*f.UserID) {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, a.Status) {
			continue
		}
		if f.WithoutToken && a.InviteTokenHash != nil {
			continue
		}
		out = append(out, a.Clone())
	}
	return out, nil
}

// orderedAssignmentIDs lists rows newest first.
func (t *memoryTx) orderedAssignmentIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(t.data.assignments))
	for id := range t.data.assignments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return t.data.seq[ids[i]] > t.data.seq[ids[j]]
	})
	return ids
}

// ================== TEAMS ==================

func (t *memoryTx) GetTeam(_ context.Context, id uuid.UUID) (*models.Team, error) {
	team, ok := t.data.teams[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &team, nil
}

func (t *memoryTx) CreateTeam(_ context.Context, team *models.Team) error {
	if _, exists := t.data.teams[team.ID]; exists {
		return ErrDuplicate
	}
	now := t.now()
	team.CreatedAt = now
	team.UpdatedAt = now
	t.data.teams[team.ID] = *team
	return nil
}

func (t *memoryTx) UpdateTeamStatus(_ context.Context, id uuid.UUID, status models.TeamStatus) error {
	team, ok := t.data.teams[id]
	if !ok {
		return ErrNotFound
	}
	team.Status = status
	team.UpdatedAt = t.now()
	t.data.teams[id] = team
	return nil
}

func (t *memoryTx) DeleteTeam(_ context.Context, id uuid.UUID) error {
	delete(t.data.teams, id)
	return nil
}

func (t *memoryTx) ListTeams(_ context.Context, projectID uuid.UUID) ([]models.Team, error) {
	var out []models.Team
	for _, team := range t.data.teams {
		if team.ProjectID == projectID {
			out = append(out, team)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ================== PROJECTS & USERS ==================

func (t *memoryTx) GetProject(_ context.Context, id uuid.UUID) (*models.Project, error) {
	p, ok := t.data.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (t *memoryTx) LockProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return t.GetProject(ctx, id)
}

func (t *memoryTx) CreateProject(_ context.Context, p *models.Project) error {
	if _, exists := t.data.projects[p.ID]; exists {
		return ErrDuplicate
	}
	now := t.now()
	p.CreatedAt = now
	p.UpdatedAt = now
	t.data.projects[p.ID] = *p
	return nil
}

func (t *memoryTx) UpdateProjectStatus(_ context.Context, id uuid.UUID, status models.ProjectStatus) error {
	p, ok := t.data.projects[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = t.now()
	t.data.projects[id] = p
	return nil
}

func (t *memoryTx) ListProjects(_ context.Context, ownerID uuid.UUID) ([]models.Project, error) {
	var out []models.Project
	for _, p := range t.data.projects {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (t *memoryTx) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := t.data.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (t *memoryTx) CreateUser(_ context.Context, u *models.User) error {
	if _, exists := t.data.users[u.ID]; exists {
		return ErrDuplicate
	}
	now := t.now()
	u.CreatedAt = now
	u.UpdatedAt = now
	t.data.users[u.ID] = *u
	return nil
}
