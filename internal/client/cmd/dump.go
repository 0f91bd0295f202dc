package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tunnelwatch/internal/client/app"
)

var dumpLimit int

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "以表格形式输出最近的请求后退出",
	Example: `  tunnelwatch dump --limit 20
  tunnelwatch dump -f /api`,
	RunE: runDump,
}

func init() {
	dumpCmd.Flags().IntVarP(&dumpLimit, "limit", "n", 100, "最多输出的条数")
	rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
	closer, err := setupLogging(false)
	if err != nil {
		return err
	}
	defer closer.Close()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	cfg.Limit = dumpLimit

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.RunDump(ctx, cfg, os.Stdout)
}
