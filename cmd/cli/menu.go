package main

import (
	"github.com/spf13/cobra"

	"github.com/himanishpuri/AmramAI/internal/tui"
	"github.com/himanishpuri/AmramAI/pkg/logger"
)

func newMenuCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "menu",
		Short: "Interactive menu: download, process local files, history and mixing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(cmd)
		},
	}
	c.Flags().String("dir", "", "Directory the file browser opens in (default: current directory)")
	return c
}

func runMenu(cmd *cobra.Command) error {
	svc, _, err := createService(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	// The full-screen UI owns stdout; only errors reach the terminal.
	logger.SetLevel(logger.ERROR)

	dir, _ := cmd.Flags().GetString("dir")
	ctx, cancel := signalContext(0)
	defer cancel()
	return tui.Run(ctx, svc, tui.Options{StartDir: dir})
}
