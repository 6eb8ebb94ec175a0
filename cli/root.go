// Package cli wires the taskboard commands: the API service, the terminal
// board and the storage maintenance commands.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:           "taskboard",
	Short:         "Team task board service and terminal board",
	Long:          `Taskboard serves a team's tasks over HTTP and renders them as a drag-and-drop kanban board in the terminal.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging (also DEBUG=true)")
	rootCmd.AddCommand(newServeCmd(), newBoardCmd(), newProvisionCmd(), newSeedCmd(), newTokenCmd())
}

// Execute runs the root command until it finishes or the process is signalled.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func newLogger(envDebug bool) *log.Logger {
	logger := log.New()
	if debug || envDebug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}
