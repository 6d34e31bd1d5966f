package repository

import (
	"context"
	"errors"
	"time"

	"skillmatch/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore runs lifecycle transactions against PostgreSQL.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

type gormTx struct {
	db *gorm.DB
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// ================== ASSIGNMENTS ==================

func (t *gormTx) GetAssignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var a models.Assignment
	if err := t.db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (t *gormTx) LockAssignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var a models.Assignment
	if err := forUpdate(t.db.WithContext(ctx)).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (t *gormTx) FindOpenAssignment(ctx context.Context, projectID, userID uuid.UUID) (*models.Assignment, error) {
	var a models.Assignment
	err := forUpdate(t.db.WithContext(ctx)).
		Where("project_id = ? AND user_id = ? AND status IN ?", projectID, userID,
			[]models.AssignmentStatus{models.AssignmentPending, models.AssignmentFrozen}).
		Order("created_at DESC").
		First(&a).Error
	if err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (t *gormTx) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	return translate(t.db.WithContext(ctx).Create(a).Error)
}

func (t *gormTx) SaveAssignment(ctx context.Context, a *models.Assignment) error {
	return translate(t.db.WithContext(ctx).Save(a).Error)
}

func (t *gormTx) DeleteAssignments(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return translate(t.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Assignment{}).Error)
}

func (t *gormTx) HasWinner(ctx context.Context, projectID uuid.UUID, exceptTeamID *uuid.UUID) (bool, error) {
	var n int64
	if err := winnerQuery(t.db.WithContext(ctx), projectID, exceptTeamID).Count(&n).Error; err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

func winnerQuery(db *gorm.DB, projectID uuid.UUID, exceptTeamID *uuid.UUID) *gorm.DB {
	q := db.Model(&models.Assignment{}).
		Where("project_id = ? AND status IN ?", projectID, WinningStatuses)
	if exceptTeamID != nil {
		q = q.Where("(team_id IS NULL OR team_id <> ?)", *exceptTeamID)
	}
	return q
}

func (t *gormTx) UpdateWhere(ctx context.Context, u StatusUpdate) (int64, error) {
	if !u.scoped() {
		return 0, ErrUnscoped
	}
	res := statusUpdateQuery(t.db.WithContext(ctx), u).
		Updates(statusUpdateValues(u, time.Now().UTC()))
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}

func statusUpdateQuery(db *gorm.DB, u StatusUpdate) *gorm.DB {
	q := db.Model(&models.Assignment{})
	if u.ProjectID != nil {
		q = q.Where("project_id = ?", *u.ProjectID)
	}
	if u.TeamID != nil {
		q = q.Where("team_id = ?", *u.TeamID)
	}
	if u.OutsideTeamID != nil {
		q = q.Where("(team_id IS NULL OR team_id <> ?)", *u.OutsideTeamID)
	}
	if u.ExcludeID != nil {
		q = q.Where("id <> ?", *u.ExcludeID)
	}
	if len(u.From) > 0 {
		q = q.Where("status IN ?", u.From)
	}
	return q
}

func statusUpdateValues(u StatusUpdate, now time.Time) map[string]interface{} {
	values := map[string]interface{}{
		"status":           u.To,
		"cancelled_reason": gorm.Expr("NULL"),
		"updated_at":       now,
	}
	if u.Reason != nil {
		values["cancelled_reason"] = *u.Reason
	}
	if !keepsToken(u.To) {
		values["invite_token_hash"] = gorm.Expr("NULL")
	}
	return values
}

func (t *gormTx) ListAssignments(ctx context.Context, f AssignmentFilter) ([]models.Assignment, error) {
	var out []models.Assignment
	if err := assignmentListQuery(t.db.WithContext(ctx), f).Find(&out).Error; err != nil {
		return nil, translate(err)
	}
	return out, nil
}

func assignmentListQuery(db *gorm.DB, f AssignmentFilter) *gorm.DB {
	q := db.Model(&models.Assignment{})
	if f.ProjectID != nil {
		q = q.Where("project_id = ?", *f.ProjectID)
	}
	if f.TeamID != nil {
		q = q.Where("team_id = ?", *f.TeamID)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.WithoutToken {
		q = q.Where("invite_token_hash IS NULL")
	}
	return q.Order("created_at DESC")
}

// ================== TEAMS ==================

func (t *gormTx) GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, error) {
	var team models.Team
	if err := t.db.WithContext(ctx).Where("id = ?", id).First(&team).Error; err != nil {
		return nil, translate(err)
	}
	return &team, nil
}

func (t *gormTx) CreateTeam(ctx context.Context, team *models.Team) error {
	return translate(t.db.WithContext(ctx).Create(team).Error)
}

func (t *gormTx) UpdateTeamStatus(ctx context.Context, id uuid.UUID, status models.TeamStatus) error {
	res := t.db.WithContext(ctx).Model(&models.Team{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *gormTx) DeleteTeam(ctx context.Context, id uuid.UUID) error {
	return translate(t.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Team{}).Error)
}

func (t *gormTx) ListTeams(ctx context.Context, projectID uuid.UUID) ([]models.Team, error) {
	var teams []models.Team
	err := t.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at ASC").Find(&teams).Error
	return teams, translate(err)
}

// ================== PROJECTS & USERS ==================

func (t *gormTx) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var p models.Project
	if err := t.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (t *gormTx) LockProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var p models.Project
	if err := forUpdate(t.db.WithContext(ctx)).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (t *gormTx) CreateProject(ctx context.Context, p *models.Project) error {
	return translate(t.db.WithContext(ctx).Create(p).Error)
}

func (t *gormTx) UpdateProjectStatus(ctx context.Context, id uuid.UUID, status models.ProjectStatus) error {
	res := t.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *gormTx) ListProjects(ctx context.Context, ownerID uuid.UUID) ([]models.Project, error) {
	var projects []models.Project
	err := t.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&projects).Error
	return projects, translate(err)
}

func (t *gormTx) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := t.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (t *gormTx) CreateUser(ctx context.Context, u *models.User) error {
	return translate(t.db.WithContext(ctx).Create(u).Error)
}
