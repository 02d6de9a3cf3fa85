package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mise/backend/internal/application/tenancy"
	"github.com/mise/backend/internal/domain/audit"
	"github.com/mise/backend/internal/domain/identity"
	"github.com/mise/backend/internal/infrastructure/auth"
	"github.com/mise/backend/internal/infrastructure/persistence"
	"github.com/spf13/cobra"
)

func newTenantCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{Use: "tenant", Short: "Manage tenants"}

	var in tenancy.TenantInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Provision an active tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := e.provisioner.CreateTenant(e.context(cmd), in)
			if err != nil {
				return err
			}
			return printJSON(cmd, t)
		},
	}
	create.Flags().StringVar(&in.ID, "id", "", "tenant id")
	create.Flags().StringVar(&in.Name, "name", "", "display name")
	create.Flags().StringVar(&in.Subdomain, "subdomain", "", "routing subdomain")
	create.Flags().StringVar(&in.Plan, "plan", "", "free, basic, pro or enterprise")
	for _, f := range []string{"id", "name", "subdomain"} {
		_ = create.MarkFlagRequired(f)
	}

	status := &cobra.Command{
		Use:   "status <tenant-id> <active|inactive|suspended|trial>",
		Short: "Change a tenant's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := identity.TenantStatus(args[1])
			if !s.IsValid() {
				return fmt.Errorf("unknown status %q", args[1])
			}
			if err := e.provisioner.SetTenantStatus(e.context(cmd), args[0], s); err != nil {
				return err
			}
			cmd.Printf("tenant %s is now %s\n", args[0], s)
			return nil
		},
	}

	cmd.AddCommand(create, status)
	return cmd
}

func newUserCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage user tenant associations"}

	var in tenancy.UserInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Associate a new user with a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := e.provisioner.CreateUser(e.context(cmd), in)
			if err != nil {
				return err
			}
			return printJSON(cmd, u)
		},
	}
	create.Flags().StringVar(&in.ID, "id", "", "user id")
	create.Flags().StringVar(&in.TenantID, "tenant", "", "tenant id")
	create.Flags().StringVar(&in.Username, "username", "", "login name")
	for _, f := range []string{"id", "tenant", "username"} {
		_ = create.MarkFlagRequired(f)
	}

	reassign := &cobra.Command{
		Use:   "reassign <user-id> <tenant-id>",
		Short: "Move a user to another tenant; in-flight strict operations fail",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := e.provisioner.ReassignUser(e.context(cmd), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, u)
		},
	}

	deactivate := &cobra.Command{
		Use:   "deactivate <user-id>",
		Short: "Deactivate a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.provisioner.DeactivateUser(e.context(cmd), args[0]); err != nil {
				return err
			}
			cmd.Printf("user %s deactivated\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(create, reassign, deactivate)
	return cmd
}

func newAuditCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{Use: "audit", Short: "Inspect the audit trail"}

	var (
		q          audit.Query
		action     string
		since      time.Duration
		allTenants bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List audit entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if q.TenantID == "" && !allTenants {
				return fmt.Errorf("--tenant is required unless --all-tenants is set")
			}
			q.Action = audit.Action(action)
			if since > 0 {
				q.From = time.Now().Add(-since)
			}
			entries, err := persistence.NewGormAuditStore(e.platform).Find(e.context(cmd), q)
			if err != nil {
				return err
			}
			return printJSON(cmd, entries)
		},
	}
	list.Flags().StringVar(&q.TenantID, "tenant", "", "tenant id")
	list.Flags().StringVar(&q.UserID, "user", "", "user id")
	list.Flags().StringVar(&action, "action", "", "action, e.g. tenant.routing_mismatch")
	list.Flags().DurationVar(&since, "since", 24*time.Hour, "look back this far; 0 for no bound")
	list.Flags().IntVar(&q.Limit, "limit", 100, "maximum entries")
	list.Flags().BoolVar(&allTenants, "all-tenants", false, "do not filter by tenant")

	cmd.AddCommand(list)
	return cmd
}

func newTokenCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Issue access tokens for testing and support"}

	var in auth.GenerateTokenInput
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue an access token signed with the configured secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, expiresAt, err := auth.NewJWTService(e.cfg.JWT).GenerateAccessToken(in)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"access_token": token, "expires_at": expiresAt})
		},
	}
	issue.Flags().StringVar(&in.UserID, "user", "", "user id")
	issue.Flags().StringVar(&in.TenantID, "tenant", "", "tenant id claim")
	issue.Flags().StringVar(&in.Username, "username", "", "username claim")
	_ = issue.MarkFlagRequired("user")

	cmd.AddCommand(issue)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
