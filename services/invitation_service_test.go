package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"skillmatch/models"
	"skillmatch/repository"

	"github.com/google/uuid"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []Invitation
}

func (n *recordingNotifier) NotifyInvitation(_ context.Context, inv Invitation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, inv)
	return nil
}

// token returns the last plaintext credential sent for the assignment.
func (n *recordingNotifier) token(id uuid.UUID) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].AssignmentID == id {
			return n.sent[i].Token
		}
	}
	return ""
}

type recordingAudit struct {
	mu     sync.Mutex
	events []models.AuditEvent
}

func (a *recordingAudit) Log(_ context.Context, e models.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return nil
}

func (a *recordingAudit) count(eventType string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   *repository.MemoryStore
	svc     *InvitationService
	notes   *recordingNotifier
	audit   *recordingAudit
	owner   Actor
	project models.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	notes := &recordingNotifier{}
	audit := &recordingAudit{}
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		store: store,
		notes: notes,
		audit: audit,
		svc: NewInvitationService(store, NewTokenIssuer(0), NewTeamCoordinator(store, audit),
			notes, audit, "https://app.example.test/"),
	}
	f.owner = f.user("Owner", models.RoleBusiness)
	f.project = f.newProject(f.owner)
	return f
}

func (f *fixture) user(name string, role models.Role) Actor {
	f.t.Helper()
	u := &models.User{ID: uuid.New(), Name: name, Email: name + "@example.test", Role: role, IsActive: true}
	f.tx(func(tx repository.Tx) error { return tx.CreateUser(f.ctx, u) })
	return Actor{ID: u.ID, Role: role}
}

func (f *fixture) student(name string) Actor {
	return f.user(name, models.RoleStudent)
}

func (f *fixture) newProject(owner Actor) models.Project {
	f.t.Helper()
	p := &models.Project{ID: uuid.New(), OwnerID: owner.ID, Title: "Data pipeline", Status: models.ProjectStatusOpen}
	f.tx(func(tx repository.Tx) error { return tx.CreateProject(f.ctx, p) })
	return *p
}

func (f *fixture) tx(fn func(tx repository.Tx) error) {
	f.t.Helper()
	if err := f.store.Transaction(f.ctx, fn); err != nil {
		f.t.Fatalf("transaction: %v", err)
	}
}

func (f *fixture) invite(candidate Actor, teamID *uuid.UUID) models.Assignment {
	f.t.Helper()
	a, err := f.svc.Invite(f.ctx, f.owner, InviteRequest{ProjectID: f.project.ID, CandidateID: candidate.ID, TeamID: teamID})
	if err != nil {
		f.t.Fatalf("invite: %v", err)
	}
	return *a
}

func (f *fixture) inviteTeam(members ...Actor) []models.Assignment {
	f.t.Helper()
	ids := make([]uuid.UUID, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	rows, err := f.svc.InviteTeam(f.ctx, f.owner, TeamInviteRequest{ProjectID: f.project.ID, CandidateIDs: ids})
	if err != nil {
		f.t.Fatalf("invite team: %v", err)
	}
	return rows
}

func (f *fixture) assignment(id uuid.UUID) models.Assignment {
	f.t.Helper()
	var out models.Assignment
	f.tx(func(tx repository.Tx) error {
		a, err := tx.GetAssignment(f.ctx, id)
		if err != nil {
			return err
		}
		out = *a
		return nil
	})
	return out
}

func (f *fixture) team(id uuid.UUID) models.Team {
	f.t.Helper()
	var out models.Team
	f.tx(func(tx repository.Tx) error {
		team, err := tx.GetTeam(f.ctx, id)
		if err != nil {
			return err
		}
		out = *team
		return nil
	})
	return out
}

func (f *fixture) projectStatus() models.ProjectStatus {
	f.t.Helper()
	var status models.ProjectStatus
	f.tx(func(tx repository.Tx) error {
		p, err := tx.GetProject(f.ctx, f.project.ID)
		if err != nil {
			return err
		}
		status = p.Status
		return nil
	})
	return status
}

func (f *fixture) projectRows() []models.Assignment {
	f.t.Helper()
	var rows []models.Assignment
	f.tx(func(tx repository.Tx) error {
		var err error
		rows, err = tx.ListAssignments(f.ctx, repository.AssignmentFilter{ProjectID: &f.project.ID})
		return err
	})
	return rows
}

func expectKind(t *testing.T, err error, kind ErrorKind, reason string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("error kind = %s, want %s (%v)", got, kind, err)
	}
	if reason != "" && ReasonOf(err) != reason {
		t.Fatalf("error reason = %q, want %q", ReasonOf(err), reason)
	}
}

func expectStatus(t *testing.T, a models.Assignment, want models.AssignmentStatus) {
	t.Helper()
	if a.Status != want {
		t.Fatalf("assignment %s status = %s, want %s", a.ID, a.Status, want)
	}
}

// assertSingleWinner checks that winning rows for the project all share one team.
func assertSingleWinner(t *testing.T, rows []models.Assignment) {
	t.Helper()
	var winner *models.Assignment
	for i := range rows {
		if !rows[i].IsWinning() {
			continue
		}
		if winner == nil {
			winner = &rows[i]
			continue
		}
		if winner.TeamID == nil || rows[i].TeamID == nil || *winner.TeamID != *rows[i].TeamID {
			t.Fatalf("two winners for one project: %s and %s", winner.ID, rows[i].ID)
		}
	}
}

func TestSoloRaceFirstAcceptWins(t *testing.T) {
	f := newFixture(t)
	a, b, c := f.student("a"), f.student("b"), f.student("c")
	rowA, rowB, rowC := f.invite(a, nil), f.invite(b, nil), f.invite(c, nil)

	accepted, err := f.svc.Accept(f.ctx, a, rowA.ID, f.notes.token(rowA.ID))
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	expectStatus(t, *accepted, models.AssignmentAccepted)
	if accepted.AssignedAt == nil {
		t.Error("assigned_at not stamped")
	}
	if f.projectStatus() != models.ProjectStatusInProgress {
		t.Errorf("project status = %s, want in_progress", f.projectStatus())
	}

	for _, id := range []uuid.UUID{rowB.ID, rowC.ID} {
		row := f.assignment(id)
		expectStatus(t, row, models.AssignmentCancelled)
		if row.CancelledReason == nil || *row.CancelledReason != models.ReasonAnotherCandidateAccepted {
			t.Errorf("cancelled reason = %v", row.CancelledReason)
		}
		if row.InviteTokenHash != nil {
			t.Error("cancelled row kept its token hash")
		}
	}

	_, err = f.svc.Accept(f.ctx, b, rowB.ID, f.notes.token(rowB.ID))
	expectKind(t, err, KindConflict, ReasonNoLongerPending)
	assertSingleWinner(t, f.projectRows())

	if f.audit.count("assignment.accepted") != 1 {
		t.Errorf("accepted audit events = %d", f.audit.count("assignment.accepted"))
	}
}

func TestReinviteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	s := f.student("s")
	first := f.invite(s, nil)
	firstToken := f.notes.token(first.ID)

	second := f.invite(s, nil)
	if second.ID != first.ID {
		t.Fatalf("re-invite created a new row: %s != %s", second.ID, first.ID)
	}
	if len(f.projectRows()) != 1 {
		t.Fatalf("rows = %d, want 1", len(f.projectRows()))
	}
	if *second.InviteTokenHash == *first.InviteTokenHash {
		t.Error("token hash unchanged after re-invite")
	}
	if second.InvitedAt == nil || second.InviteExpiresAt == nil {
		t.Error("re-invite did not restamp invited_at and expiry")
	}

	_, err := f.svc.Accept(f.ctx, s, first.ID, firstToken)
	expectKind(t, err, KindValidation, ReasonInvalidToken)

	if _, err := f.svc.Accept(f.ctx, s, first.ID, f.notes.token(first.ID)); err != nil {
		t.Fatalf("accept with fresh token: %v", err)
	}
}

func TestTokenIsSingleUse(t *testing.T) {
	tests := []struct {
		name  string
		leave func(f *fixture, s Actor, row models.Assignment)
	}{
		{"after accept", func(f *fixture, s Actor, row models.Assignment) {
			if _, err := f.svc.Accept(f.ctx, s, row.ID, f.notes.token(row.ID)); err != nil {
				f.t.Fatalf("accept: %v", err)
			}
		}},
		{"after decline", func(f *fixture, s Actor, row models.Assignment) {
			if _, err := f.svc.Decline(f.ctx, s, row.ID); err != nil {
				f.t.Fatalf("decline: %v", err)
			}
		}},
		{"after cancel", func(f *fixture, _ Actor, row models.Assignment) {
			if _, err := f.svc.Cancel(f.ctx, f.owner, row.ID, nil); err != nil {
				f.t.Fatalf("cancel: %v", err)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			s := f.student("s")
			row := f.invite(s, nil)
			token := f.notes.token(row.ID)

			tt.leave(f, s, row)

			_, err := f.svc.Accept(f.ctx, s, row.ID, token)
			expectKind(t, err, KindConflict, ReasonNoLongerPending)
			if f.assignment(row.ID).InviteTokenHash != nil {
				t.Error("token hash survived leaving pending")
			}
		})
	}
}

func TestTeamFreezeAndUnfreeze(t *testing.T) {
	f := newFixture(t)
	x, y, z := f.student("x"), f.student("y"), f.student("z")
	rows := f.inviteTeam(x, y)
	rowX, rowY := rows[0], rows[1]
	teamID := *rowX.TeamID

	if rowX.Metadata["team_invite"] != true || rowX.Metadata["team_size"] != 2 {
		t.Errorf("team metadata not tagged: %v", rowX.Metadata)
	}
	if name := f.team(teamID).Name; name != "Team for Data pipeline" {
		t.Errorf("team name = %q", name)
	}

	if _, err := f.svc.Decline(f.ctx, x, rowX.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}
	expectStatus(t, f.assignment(rowX.ID), models.AssignmentDeclined)
	frozen := f.assignment(rowY.ID)
	expectStatus(t, frozen, models.AssignmentFrozen)
	if frozen.CancelledReason == nil || *frozen.CancelledReason != models.ReasonTeamMemberDeclined {
		t.Errorf("frozen reason = %v", frozen.CancelledReason)
	}
	if f.team(teamID).Status != models.TeamStatusFrozen {
		t.Fatalf("team status = %s, want frozen", f.team(teamID).Status)
	}

	_, err := f.svc.Accept(f.ctx, y, rowY.ID, f.notes.token(rowY.ID))
	expectKind(t, err, KindConflict, ReasonNoLongerPending)

	rowZ := f.invite(z, &teamID)
	expectStatus(t, rowZ, models.AssignmentPending)
	if f.notes.token(rowZ.ID) == "" {
		t.Error("replacement received no token")
	}
	unfrozen := f.assignment(rowY.ID)
	expectStatus(t, unfrozen, models.AssignmentPending)
	if unfrozen.CancelledReason != nil {
		t.Errorf("unfrozen row kept reason %q", *unfrozen.CancelledReason)
	}
	if f.team(teamID).Status != models.TeamStatusPending {
		t.Fatalf("team status = %s, want pending", f.team(teamID).Status)
	}

	if _, err := f.svc.Accept(f.ctx, y, rowY.ID, f.notes.token(rowY.ID)); err != nil {
		t.Fatalf("accept after unfreeze: %v", err)
	}
}

func TestExpiredTokenIsRejected(t *testing.T) {
	f := newFixture(t)
	s := f.student("s")
	row := f.invite(s, nil)
	token := f.notes.token(row.ID)

	f.svc.tokens.now = func() time.Time { return time.Now().UTC().Add(8 * 24 * time.Hour) }

	_, err := f.svc.Accept(f.ctx, s, row.ID, token)
	expectKind(t, err, KindValidation, ReasonInvalidToken)
	expectStatus(t, f.assignment(row.ID), models.AssignmentPending)
}

func TestTeamStatusFollowsAcceptance(t *testing.T) {
	f := newFixture(t)
	x, y, solo := f.student("x"), f.student("y"), f.student("solo")
	rows := f.inviteTeam(x, y)
	soloRow := f.invite(solo, nil)
	teamID := *rows[0].TeamID

	if _, err := f.svc.Accept(f.ctx, x, rows[0].ID, f.notes.token(rows[0].ID)); err != nil {
		t.Fatalf("first member accept: %v", err)
	}
	if got := f.team(teamID).Status; got != models.TeamStatusPartial {
		t.Fatalf("team status = %s, want partial", got)
	}
	expectStatus(t, f.assignment(soloRow.ID), models.AssignmentCancelled)
	expectStatus(t, f.assignment(rows[1].ID), models.AssignmentPending)

	if _, err := f.svc.AcceptWithoutToken(f.ctx, y, rows[1].ID); err != nil {
		t.Fatalf("second member accept: %v", err)
	}
	if got := f.team(teamID).Status; got != models.TeamStatusActive {
		t.Fatalf("team status = %s, want active", got)
	}
	assertSingleWinner(t, f.projectRows())
}

func TestTeamAcceptCancelsOtherTeams(t *testing.T) {
	f := newFixture(t)
	first := f.inviteTeam(f.student("a1"), f.student("a2"))
	second := f.inviteTeam(f.student("b1"), f.student("b2"))

	var b1 Actor
	f.tx(func(tx repository.Tx) error {
		u, err := tx.GetUser(f.ctx, *second[0].UserID)
		b1 = Actor{ID: u.ID, Role: u.Role}
		return err
	})
	if _, err := f.svc.AcceptWithoutToken(f.ctx, b1, second[0].ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	for _, row := range first {
		expectStatus(t, f.assignment(row.ID), models.AssignmentCancelled)
	}
	expectStatus(t, f.assignment(second[1].ID), models.AssignmentPending)

	_, err := f.svc.InviteTeam(f.ctx, f.owner, TeamInviteRequest{
		ProjectID:    f.project.ID,
		CandidateIDs: []uuid.UUID{f.student("c1").ID, f.student("c2").ID},
	})
	expectKind(t, err, KindConflict, ReasonProjectAlreadyAssigned)
}

func TestDeclineAfterTeammateAccepted(t *testing.T) {
	f := newFixture(t)
	x, y, z := f.student("x"), f.student("y"), f.student("z")
	rows := f.inviteTeam(x, y, z)
	teamID := *rows[0].TeamID

	if _, err := f.svc.AcceptWithoutToken(f.ctx, x, rows[0].ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.svc.Decline(f.ctx, y, rows[1].ID); err != nil {
		t.Fatalf("decline: %v", err)
	}
	expectStatus(t, f.assignment(rows[2].ID), models.AssignmentFrozen)
	if got := f.team(teamID).Status; got != models.TeamStatusPartial {
		t.Fatalf("team status = %s, want partial", got)
	}
}

func TestDeleteGuard(t *testing.T) {
	f := newFixture(t)
	accepted := f.student("accepted")
	rowAccepted := f.invite(accepted, nil)

	if _, err := f.svc.AcceptWithoutToken(f.ctx, accepted, rowAccepted.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	err := f.svc.Delete(f.ctx, f.owner, rowAccepted.ID)
	expectKind(t, err, KindConflict, ReasonNotDeletable)

	other := newFixture(t)
	rowPending := other.invite(other.student("pending"), nil)
	if err := other.svc.Delete(other.ctx, other.owner, rowPending.ID); err != nil {
		t.Fatalf("delete pending: %v", err)
	}
	if len(other.projectRows()) != 0 {
		t.Fatal("pending row not removed")
	}
}

func TestDeleteTeam(t *testing.T) {
	f := newFixture(t)
	x, y := f.student("x"), f.student("y")
	rows := f.inviteTeam(x, y)
	teamID := *rows[0].TeamID

	if err := f.svc.Delete(f.ctx, f.owner, rows[1].ID); err != nil {
		t.Fatalf("delete team: %v", err)
	}
	if len(f.projectRows()) != 0 {
		t.Fatal("team rows not removed")
	}
	err := f.store.Transaction(f.ctx, func(tx repository.Tx) error {
		_, err := tx.GetTeam(f.ctx, teamID)
		return err
	})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("team still present: %v", err)
	}

	g := newFixture(t)
	a, b := g.student("a"), g.student("b")
	teamRows := g.inviteTeam(a, b)
	if _, err := g.svc.AcceptWithoutToken(g.ctx, a, teamRows[0].ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	err = g.svc.Delete(g.ctx, g.owner, teamRows[1].ID)
	expectKind(t, err, KindConflict, ReasonNotDeletable)
}

func TestLosingAcceptIsCancelled(t *testing.T) {
	f := newFixture(t)
	winner, loser := f.student("winner"), f.student("loser")

	// A winner committed alongside a still-pending sibling.
	token := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	hash := HashToken(token)
	expires := time.Now().UTC().Add(time.Hour)
	loserRow := &models.Assignment{
		ID: uuid.New(), ProjectID: f.project.ID, UserID: &loser.ID, Status: models.AssignmentPending,
		InviteTokenHash: &hash, InviteExpiresAt: &expires,
	}
	f.tx(func(tx repository.Tx) error {
		if err := tx.CreateAssignment(f.ctx, &models.Assignment{
			ID: uuid.New(), ProjectID: f.project.ID, UserID: &winner.ID, Status: models.AssignmentAccepted,
		}); err != nil {
			return err
		}
		return tx.CreateAssignment(f.ctx, loserRow)
	})

	_, err := f.svc.Accept(f.ctx, loser, loserRow.ID, token)
	expectKind(t, err, KindConflict, models.ReasonAnotherCandidateAccepted)

	got := f.assignment(loserRow.ID)
	expectStatus(t, got, models.AssignmentCancelled)
	if got.CancelledReason == nil || *got.CancelledReason != models.ReasonAnotherCandidateAccepted {
		t.Errorf("loser reason = %v", got.CancelledReason)
	}
	if got.InviteTokenHash != nil {
		t.Error("loser kept token hash")
	}
}

func TestConcurrentAcceptsHaveOneWinner(t *testing.T) {
	f := newFixture(t)
	const candidates = 12

	type pair struct {
		actor Actor
		row   models.Assignment
	}
	pairs := make([]pair, candidates)
	for i := range pairs {
		s := f.student(uuid.NewString())
		pairs[i] = pair{actor: s, row: f.invite(s, nil)}
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	start := make(chan struct{})
	for _, p := range pairs {
		wg.Add(1)
		go func(p pair) {
			defer wg.Done()
			<-start
			_, err := f.svc.Accept(context.Background(), p.actor, p.row.ID, f.notes.token(p.row.ID))
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
				return
			}
			if KindOf(err) != KindConflict {
				t.Errorf("unexpected error: %v", err)
			}
		}(p)
	}
	close(start)
	wg.Wait()

	if winners != 1 {
		t.Fatalf("winners = %d, want 1", winners)
	}
	rows := f.projectRows()
	assertSingleWinner(t, rows)
	for _, r := range rows {
		if r.Status != models.AssignmentAccepted && r.Status != models.AssignmentCancelled {
			t.Errorf("row %s left in %s", r.ID, r.Status)
		}
	}
}

func TestCompletionAndFeedback(t *testing.T) {
	f := newFixture(t)
	s := f.student("s")
	row := f.invite(s, nil)

	rating := 5
	_, err := f.svc.Complete(f.ctx, f.owner, row.ID, nil, &rating)
	expectKind(t, err, KindConflict, ReasonNotAccepted)

	if _, err := f.svc.AcceptWithoutToken(f.ctx, s, row.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err = f.svc.StudentFeedback(f.ctx, s, row.ID, nil, &rating)
	expectKind(t, err, KindConflict, ReasonNotCompleted)

	bad := 6
	_, err = f.svc.Complete(f.ctx, f.owner, row.ID, nil, &bad)
	expectKind(t, err, KindValidation, "")

	feedback := "Solid delivery"
	done, err := f.svc.Complete(f.ctx, f.owner, row.ID, &feedback, &rating)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	expectStatus(t, *done, models.AssignmentCompleted)
	if done.CompletedAt == nil || *done.OwnerFeedback != feedback || *done.RatingFromOwner != 5 {
		t.Errorf("completion fields not set: %+v", done)
	}
	if f.projectStatus() != models.ProjectStatusCompleted {
		t.Errorf("project status = %s, want completed", f.projectStatus())
	}

	firstCompletedAt := *done.CompletedAt
	again, err := f.svc.Complete(f.ctx, f.owner, row.ID, nil, nil)
	if err != nil {
		t.Fatalf("complete again: %v", err)
	}
	if !again.CompletedAt.Equal(firstCompletedAt) {
		t.Error("completed_at restamped")
	}

	four := 4
	fb, err := f.svc.StudentFeedback(f.ctx, s, row.ID, &feedback, &four)
	if err != nil {
		t.Fatalf("student feedback: %v", err)
	}
	if *fb.RatingFromStudent != 4 {
		t.Errorf("rating_from_student = %d", *fb.RatingFromStudent)
	}
}

func TestAccessRules(t *testing.T) {
	f := newFixture(t)
	s, stranger := f.student("s"), f.student("stranger")
	otherOwner := f.user("other", models.RoleBusiness)
	admin := f.user("admin", models.RoleAdmin)
	row := f.invite(s, nil)

	_, err := f.svc.Invite(f.ctx, otherOwner, InviteRequest{ProjectID: f.project.ID, CandidateID: stranger.ID})
	expectKind(t, err, KindAuthorization, "")

	_, err = f.svc.Invite(f.ctx, f.owner, InviteRequest{ProjectID: f.project.ID, CandidateID: otherOwner.ID})
	expectKind(t, err, KindValidation, "")

	_, err = f.svc.Invite(f.ctx, f.owner, InviteRequest{ProjectID: uuid.New(), CandidateID: s.ID})
	expectKind(t, err, KindNotFound, "")

	_, err = f.svc.Accept(f.ctx, stranger, row.ID, f.notes.token(row.ID))
	expectKind(t, err, KindNotFound, "")

	_, err = f.svc.Cancel(f.ctx, otherOwner, row.ID, nil)
	expectKind(t, err, KindAuthorization, "")

	_, err = f.svc.GetAssignment(f.ctx, stranger, row.ID)
	expectKind(t, err, KindNotFound, "")

	for _, actor := range []Actor{s, f.owner, admin} {
		if _, err := f.svc.GetAssignment(f.ctx, actor, row.ID); err != nil {
			t.Errorf("GetAssignment as %s: %v", actor.Role, err)
		}
	}

	if _, err := f.svc.Invite(f.ctx, admin, InviteRequest{ProjectID: f.project.ID, CandidateID: stranger.ID}); err != nil {
		t.Errorf("admin invite: %v", err)
	}
}

func TestCancelRules(t *testing.T) {
	f := newFixture(t)
	s, t2 := f.student("s"), f.student("t")
	row := f.invite(s, nil)

	reason := "budget cut"
	cancelled, err := f.svc.Cancel(f.ctx, f.owner, row.ID, &reason)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if *cancelled.CancelledReason != reason {
		t.Errorf("reason = %q", *cancelled.CancelledReason)
	}

	_, err = f.svc.Cancel(f.ctx, f.owner, row.ID, nil)
	expectKind(t, err, KindConflict, ReasonNotCancellable)

	other := f.invite(t2, nil)
	def, err := f.svc.Cancel(f.ctx, f.owner, other.ID, nil)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if *def.CancelledReason != models.ReasonCancelledByOwner {
		t.Errorf("default reason = %q", *def.CancelledReason)
	}

	// A cancelled candidate can be invited again on a fresh row.
	again := f.invite(s, nil)
	if again.ID == row.ID {
		t.Error("re-invite after cancel reused the cancelled row")
	}
}

func TestArchivedTeamRejectsInvites(t *testing.T) {
	f := newFixture(t)
	rows := f.inviteTeam(f.student("x"), f.student("y"))
	teamID := *rows[0].TeamID

	if _, err := f.svc.teams.Archive(f.ctx, f.owner, teamID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	_, err := f.svc.Invite(f.ctx, f.owner, InviteRequest{ProjectID: f.project.ID, CandidateID: f.student("z").ID, TeamID: &teamID})
	expectKind(t, err, KindConflict, ReasonTeamArchived)

	var x Actor
	f.tx(func(tx repository.Tx) error {
		u, err := tx.GetUser(f.ctx, *rows[0].UserID)
		x = Actor{ID: u.ID, Role: u.Role}
		return err
	})
	_, err = f.svc.AcceptWithoutToken(f.ctx, x, rows[0].ID)
	expectKind(t, err, KindConflict, ReasonTeamArchived)

	if got := f.team(teamID).Status; got != models.TeamStatusArchived {
		t.Fatalf("archived team recomputed to %s", got)
	}
}

func TestInviteTeamNeedsTwoCandidates(t *testing.T) {
	f := newFixture(t)
	s := f.student("s")
	_, err := f.svc.InviteTeam(f.ctx, f.owner, TeamInviteRequest{
		ProjectID:    f.project.ID,
		CandidateIDs: []uuid.UUID{s.ID, s.ID},
	})
	expectKind(t, err, KindValidation, "")
}

func TestInviteManyIsAtomic(t *testing.T) {
	f := newFixture(t)
	good := f.student("good")
	notStudent := f.user("biz", models.RoleBusiness)

	_, err := f.svc.InviteMany(f.ctx, f.owner, MultiInviteRequest{
		ProjectID:    f.project.ID,
		CandidateIDs: []uuid.UUID{good.ID, notStudent.ID},
	})
	expectKind(t, err, KindValidation, "")
	if n := len(f.projectRows()); n != 0 {
		t.Fatalf("partial multi-invite left %d rows", n)
	}
	if len(f.notes.sent) != 0 {
		t.Fatal("notification sent for rolled back invite")
	}

	rows, err := f.svc.InviteMany(f.ctx, f.owner, MultiInviteRequest{
		ProjectID:    f.project.ID,
		CandidateIDs: []uuid.UUID{good.ID, f.student("other").ID},
		Metadata:     map[string]interface{}{"match_score": 0.82},
	})
	if err != nil {
		t.Fatalf("invite many: %v", err)
	}
	if len(rows) != 2 || rows[0].MatchScore == nil || *rows[0].MatchScore != 0.82 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if f.notes.sent[0].AcceptURL != "https://app.example.test/accept-invite/"+rows[0].ID.String()+"?token="+f.notes.sent[0].Token {
		t.Errorf("accept url = %s", f.notes.sent[0].AcceptURL)
	}
}

func TestListings(t *testing.T) {
	f := newFixture(t)
	s := f.student("s")
	row := f.invite(s, nil)
	f.invite(f.student("t"), nil)

	all, err := f.svc.ListProjectAssignments(f.ctx, f.owner, f.project.ID)
	if err != nil || len(all) != 2 {
		t.Fatalf("project listing = %d, %v", len(all), err)
	}

	mine, err := f.svc.ListStudentAssignments(f.ctx, s, nil)
	if err != nil || len(mine) != 1 || mine[0].ID != row.ID {
		t.Fatalf("student listing = %+v, %v", mine, err)
	}

	accepted := models.AssignmentAccepted
	none, err := f.svc.ListStudentAssignments(f.ctx, s, &accepted)
	if err != nil || len(none) != 0 {
		t.Fatalf("filtered listing = %+v, %v", none, err)
	}

	_, err = f.svc.ListProjectAssignments(f.ctx, s, f.project.ID)
	expectKind(t, err, KindAuthorization, "")
}

func TestCancelledProjectClosesInvitations(t *testing.T) {
	f := newFixture(t)
	alice := f.student("alice")
	bob := f.student("bob")
	carol := f.student("carol")
	projects := NewProjectService(f.store, f.audit)

	solo := f.invite(alice, nil)
	token := f.notes.token(solo.ID)
	team := f.inviteTeam(bob, carol)

	if _, err := projects.SetStatus(f.ctx, f.owner, f.project.ID, models.ProjectStatusCancelled); err != nil {
		t.Fatalf("cancel project: %v", err)
	}

	for _, row := range append([]models.Assignment{solo}, team...) {
		got := f.assignment(row.ID)
		expectStatus(t, got, models.AssignmentCancelled)
		if got.CancelledReason == nil || *got.CancelledReason != models.ReasonProjectCancelled {
			t.Fatalf("reason = %v", got.CancelledReason)
		}
		if got.InviteTokenHash != nil {
			t.Fatal("token hash kept on cancelled row")
		}
	}
	if st := f.team(*team[0].TeamID).Status; st != models.TeamStatusPending {
		t.Fatalf("team status = %s", st)
	}

	_, err := f.svc.Accept(f.ctx, alice, solo.ID, token)
	expectKind(t, err, KindConflict, ReasonNoLongerPending)
	if st := f.projectStatus(); st != models.ProjectStatusCancelled {
		t.Fatalf("project status = %s, want cancelled", st)
	}

	_, err = f.svc.Invite(f.ctx, f.owner, InviteRequest{ProjectID: f.project.ID, CandidateID: alice.ID})
	expectKind(t, err, KindConflict, ReasonProjectNotOpen)

	// Reopening allows fresh invitations again.
	if _, err := projects.SetStatus(f.ctx, f.owner, f.project.ID, models.ProjectStatusOpen); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	again := f.invite(alice, nil)
	if again.ID == solo.ID {
		t.Fatal("cancelled row was reused")
	}
	if _, err := f.svc.Accept(f.ctx, alice, again.ID, f.notes.token(again.ID)); err != nil {
		t.Fatalf("accept after reopen: %v", err)
	}
	if st := f.projectStatus(); st != models.ProjectStatusInProgress {
		t.Fatalf("project status = %s", st)
	}
}

func TestAcceptRejectsDraftProject(t *testing.T) {
	f := newFixture(t)
	alice := f.student("alice")
	row := f.invite(alice, nil)

	// Rows stay pending when a project goes back to draft.
	f.tx(func(tx repository.Tx) error {
		return tx.UpdateProjectStatus(f.ctx, f.project.ID, models.ProjectStatusDraft)
	})

	_, err := f.svc.AcceptWithoutToken(f.ctx, alice, row.ID)
	expectKind(t, err, KindConflict, ReasonProjectNotOpen)
	expectStatus(t, f.assignment(row.ID), models.AssignmentPending)
	if st := f.projectStatus(); st != models.ProjectStatusDraft {
		t.Fatalf("project status = %s", st)
	}

	_, err = f.svc.InviteMany(f.ctx, f.owner, MultiInviteRequest{ProjectID: f.project.ID, CandidateIDs: []uuid.UUID{f.student("bob").ID}})
	expectKind(t, err, KindConflict, ReasonProjectNotOpen)
}

func TestDeclineByLastLiveMemberLeavesTeamPending(t *testing.T) {
	f := newFixture(t)
	bob := f.student("bob")
	carol := f.student("carol")
	rows := f.inviteTeam(bob, carol)
	teamID := *rows[0].TeamID

	if _, err := f.svc.Cancel(f.ctx, f.owner, rows[1].ID, nil); err != nil {
		t.Fatalf("cancel carol: %v", err)
	}
	if _, err := f.svc.Decline(f.ctx, bob, rows[0].ID); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if st := f.team(teamID).Status; st != models.TeamStatusPending {
		t.Fatalf("team status = %s, want pending", st)
	}
}
