package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tunnelwatch/internal/client/app"
)

var noMouse bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "交互式查看请求（默认子命令）",
	Long: `在终端界面中实时查看请求，最新的在最上方。

按键：
  ↑/↓ j/k  移动      Enter/空格  展开或折叠
  /        编辑过滤   m          显示更多
  t        切换配色   r          断线后重连
  q        退出

标准输出不是终端时自动改用 follow 模式。`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&noMouse, "no-mouse", false, "禁用鼠标")
	rootCmd.Flags().BoolVar(&noMouse, "no-mouse", false, "禁用鼠标")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return runFollow(cmd, args)
	}

	closer, err := setupLogging(true)
	if err != nil {
		return err
	}
	defer closer.Close()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	cfg.Mouse = !noMouse

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunWatch(ctx, cfg); err != nil {
		log.Errorf("[watch] 退出：%v", err)
		return err
	}
	return nil
}
