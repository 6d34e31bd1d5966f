package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"skillmatch/audit"
	"skillmatch/config"
	"skillmatch/database"
	"skillmatch/middleware"
	"skillmatch/models"
	"skillmatch/repository"
	"skillmatch/services"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// operator is the actor used for CLI-initiated changes.
var operator = services.Actor{Role: models.RoleAdmin}

type backend struct {
	store repository.Store
	teams *services.TeamCoordinator
	sink  *audit.GormSink
}

func openBackend() (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	db, err := database.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	store := repository.NewGormStore(db)
	sink := audit.NewGormSink(db)
	return &backend{store: store, teams: services.NewTeamCoordinator(store, sink), sink: sink}, nil
}

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := openBackend(); err != nil {
				return err
			}
			defer database.CloseDB()
			fmt.Println(color.New(color.FgGreen).Sprint("✓"), "migrations applied")
			return nil
		},
	}
}

// TokenCmd returns the token command
func TokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for local development",
		Long: `Sign a bearer token with JWT_SECRET.

Examples:
  matchctl token --user 6f0c... --role business
  matchctl token --user 6f0c... --role student --ttl 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			r, err := parseRole(role)
			if err != nil {
				return err
			}
			token, err := middleware.IssueAccessToken(cfg.JWTSecret, id, r, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (uuid)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleStudent), "student, business or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// UserCmd returns the user command
func UserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(userAddCmd())
	return cmd
}

func userAddCmd() *cobra.Command {
	var name, email, role, level, domain string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRole(role)
			if err != nil {
				return err
			}
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer database.CloseDB()

			u := &models.User{
				ID:       uuid.New(),
				Name:     strings.TrimSpace(name),
				Email:    strings.ToLower(strings.TrimSpace(email)),
				Role:     r,
				Level:    level,
				Domain:   domain,
				IsActive: true,
			}
			ctx := context.Background()
			if err := b.store.Transaction(ctx, func(tx repository.Tx) error {
				return tx.CreateUser(ctx, u)
			}); err != nil {
				return err
			}
			fmt.Printf("%s user %s <%s> created: %s\n", color.New(color.FgGreen).Sprint("✓"), u.Name, u.Email, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&role, "role", string(models.RoleStudent), "student, business or admin")
	cmd.Flags().StringVar(&level, "level", "", "student level")
	cmd.Flags().StringVar(&domain, "domain", "", "skill domain")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// AssignmentsCmd returns the assignments command
func AssignmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assignments",
		Short: "Inspect project assignments",
	}
	cmd.AddCommand(assignmentsListCmd())
	cmd.AddCommand(assignmentsBackfillCmd())
	return cmd
}

func assignmentsBackfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill-tokens",
		Short: "Give pending invitations without a token a fresh hash and expiry",
		Long: `Pending rows created before invite tokens existed cannot be accepted with a
token at all. This stamps them with a new hash and expiry; candidates still
need a re-invite to receive a usable link.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer database.CloseDB()

			svc := services.NewCleanupService(b.store, services.NewTokenIssuer(cfg.InviteExpiry()), b.sink)
			fixed, err := svc.BackfillInviteTokens(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("%s %d assignments backfilled\n", color.New(color.FgGreen).Sprint("✓"), fixed)
			return nil
		},
	}
}

func assignmentsListCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every assignment of a project, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(projectID)
			if err != nil {
				return fmt.Errorf("invalid --project: %w", err)
			}
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer database.CloseDB()

			svc := services.NewInvitationService(b.store, nil, b.teams, nil, b.sink, "")
			rows, err := svc.ListProjectAssignments(context.Background(), operator, id)
			if err != nil {
				return err
			}
			writeAssignments(os.Stdout, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id (uuid)")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

// TeamCmd returns the team command
func TeamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Inspect and repair teams",
	}
	cmd.AddCommand(teamShowCmd())
	cmd.AddCommand(teamRecomputeCmd())
	cmd.AddCommand(teamArchiveCmd())
	return cmd
}

func teamShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [team-id]",
		Short: "Show a team and its members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid team id: %w", err)
			}
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer database.CloseDB()

			view, err := b.teams.GetTeam(context.Background(), operator, teamID)
			if err != nil {
				return err
			}
			fmt.Printf("Team %s (%s)\n", view.Team.Name, view.Team.ID)
			fmt.Printf("  Project: %s\n", view.Team.ProjectID)
			fmt.Printf("  Status:  %s\n\n", teamStatusLabel(view.Team.Status))
			writeAssignments(os.Stdout, view.Members)
			return nil
		},
	}
}

func teamRecomputeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute [team-id]",
		Short: "Re-derive a team's status from its members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid team id: %w", err)
			}
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer database.CloseDB()

			team, err := b.teams.RecomputeTeam(context.Background(), teamID)
			if err != nil {
				return err
			}
			fmt.Printf("Team %s is %s\n", team.ID, teamStatusLabel(team.Status))
			return nil
		},
	}
}

func teamArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive [team-id]",
		Short: "Archive a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid team id: %w", err)
			}
			b, err := openBackend()
			if err != nil {
				return err
			}
			defer database.CloseDB()

			team, err := b.teams.Archive(context.Background(), operator, teamID)
			if err != nil {
				return err
			}
			fmt.Printf("%s team %s archived\n", color.New(color.FgGreen).Sprint("✓"), team.ID)
			return nil
		},
	}
}

func parseRole(s string) (models.Role, error) {
	switch r := models.Role(strings.ToLower(strings.TrimSpace(s))); r {
	case models.RoleStudent, models.RoleBusiness, models.RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q (want student, business or admin)", s)
	}
}

func statusLabel(s models.AssignmentStatus) string {
	switch s {
	case models.AssignmentAccepted, models.AssignmentCompleted:
		return color.New(color.FgGreen).Sprint(s)
	case models.AssignmentPending:
		return color.New(color.FgYellow).Sprint(s)
	case models.AssignmentFrozen:
		return color.New(color.FgCyan).Sprint(s)
	default:
		return color.New(color.FgRed).Sprint(s)
	}
}

func teamStatusLabel(s models.TeamStatus) string {
	switch s {
	case models.TeamStatusActive:
		return color.New(color.FgGreen).Sprint(s)
	case models.TeamStatusArchived:
		return color.New(color.FgHiBlack).Sprint(s)
	default:
		return color.New(color.FgYellow).Sprint(s)
	}
}

func writeAssignments(out io.Writer, rows []models.Assignment) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No assignments.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tTEAM\tSTATUS\tREASON\tINVITED")
	for _, a := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, orDash(a.UserID), orDash(a.TeamID), statusLabel(a.Status), deref(a.CancelledReason), formatTime(a.InvitedAt))
	}
	w.Flush()
}

func orDash(id *uuid.UUID) string {
	if id == nil {
		return "-"
	}
	return id.String()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}
