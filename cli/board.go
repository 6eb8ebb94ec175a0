package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/board"
	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/client"
	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/config"
	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/domain"
	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/session"
	"github.com/lakshaytakkar/suprans-team-portal-repl-sub002/tui"
)

var errNotSignedIn = errors.New("not signed in: pass --user, --team and --role once")

type boardFlags struct {
	apiURL string
	token  string
	user   string
	team   string
	role   string
}

func newBoardCmd() *cobra.Command {
	var f boardFlags
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Open the team's kanban board in the terminal",
		Long: `Open the team's kanban board. The signed-in user, team and role are kept in
$TASKBOARD_HOME/session.yaml, so they only need to be given once.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadBoard()
			if err != nil {
				return err
			}
			if f.apiURL != "" {
				cfg.APIURL = f.apiURL
			}
			if f.token != "" {
				cfg.Token = f.token
			}
			return runBoard(cmd.Context(), cfg, f)
		},
	}
	cmd.Flags().StringVar(&f.apiURL, "api", "", "task API base URL (overrides TASKBOARD_API_URL)")
	cmd.Flags().StringVar(&f.token, "token", "", "bearer token (overrides TASKBOARD_TOKEN)")
	cmd.Flags().StringVar(&f.user, "user", "", "sign in as this user id")
	cmd.Flags().StringVar(&f.team, "team", "", "open this team")
	cmd.Flags().StringVar(&f.role, "role", "", "role of the signed-in user (member, manager, admin)")
	return cmd
}

func runBoard(ctx context.Context, cfg config.Board, f boardFlags) error {
	logger, closeLog, err := boardLogger(cfg.Home)
	if err != nil {
		return err
	}
	defer closeLog()

	sess, err := openSession(cfg, f, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	api := client.New(cfg.APIURL, cfg.Token)
	users, err := api.ListUsers(ctx)
	if err != nil {
		logger.WithError(err).Warn("load users failed")
	}

	bus := board.NewLocalBus()
	query := board.NewTaskQuery(api, bus, board.QueryKey{TeamID: sess.TeamID(), Role: sess.EffectiveRole()})
	defer query.Close()
	dispatcher := board.NewDispatcher(api, bus, logger)
	coord := board.NewCoordinator(ctx, nil, query, dispatcher, logger)

	go board.Follow(ctx, api, bus, sess.TeamID(), logger)

	err = tui.Run(tui.Deps{
		Ctx:         ctx,
		Query:       query,
		Coordinator: coord,
		Dispatcher:  dispatcher,
		Bus:         bus,
		Session:     sess,
		Users:       domain.NewDirectory(users),
	})
	cancel()
	dispatcher.Wait()
	return err
}

// openSession loads the persisted session and applies sign-in flags.
func openSession(cfg config.Board, f boardFlags, logger *log.Logger) (*session.Session, error) {
	sess, err := session.Load(cfg.SessionFile(), logger)
	if err != nil {
		return nil, err
	}
	switch {
	case f.user != "" || f.role != "":
		if f.user == "" || f.role == "" || (f.team == "" && sess.TeamID() == "") {
			return nil, errNotSignedIn
		}
		team := f.team
		if team == "" {
			team = sess.TeamID()
		}
		if err := sess.SignIn(f.user, team, domain.Role(f.role)); err != nil {
			return nil, err
		}
	case f.team != "":
		if sess.UserID() == "" {
			return nil, errNotSignedIn
		}
		if err := sess.SwitchTeam(f.team); err != nil {
			return nil, err
		}
	}
	if sess.UserID() == "" || sess.TeamID() == "" {
		return nil, errNotSignedIn
	}
	return sess, nil
}

// boardLogger writes to a file under home since the board owns the terminal.
func boardLogger(home string) (*log.Logger, func(), error) {
	if err := os.MkdirAll(home, 0o700); err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", home, err)
	}
	f, err := os.OpenFile(filepath.Join(home, "board.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open board log: %w", err)
	}
	logger := newLogger(false)
	logger.SetOutput(f)
	return logger, func() { _ = f.Close() }, nil
}
