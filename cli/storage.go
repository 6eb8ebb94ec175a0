package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/api"
	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/config"
	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/storage"
)

func newProvisionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Create the storage tables and queues",
		Long:  `Create TASKS_TABLE, USERS_TABLE and TASK_EVENTS_QUEUE. Existing resources are left untouched.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := config.LoadStorage()
			if err != nil {
				return err
			}
			logger := newLogger(false)
			logger.Info("storage provisioning starting")
			if err := storage.Provision(cmd.Context(), st.ConnStr,
				[]string{st.TasksTable, st.UsersTable},
				[]string{st.EventsQueue}, logger); err != nil {
				return err
			}
			logger.Info("storage provisioning complete")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Load users and tasks from a YAML fixture into table storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := config.LoadStorage()
			if err != nil {
				return err
			}
			seed, err := storage.LoadSeed(args[0])
			if err != nil {
				return err
			}
			tables, err := storage.New(st.ConnStr, st.TasksTable, st.UsersTable)
			if err != nil {
				return err
			}
			if err := seed.Apply(cmd.Context(), tables, time.Now()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d users and %d tasks.\n", len(seed.Users), len(seed.Tasks))
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		user  string
		role  string
		teams []string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local shared-secret auth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("LOCAL_AUTH_SHARED_SECRET")
			if secret == "" {
				return fmt.Errorf("missing LOCAL_AUTH_SHARED_SECRET")
			}
			token, err := api.SignLocalToken([]byte(secret), user, domain.Role(role), teams, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(token))
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id (sub claim)")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleMember), "role claim")
	cmd.Flags().StringSliceVar(&teams, "team", nil, "team the user belongs to (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}
