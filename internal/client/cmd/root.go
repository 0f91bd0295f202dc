package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"tunnelwatch/internal/client/app"
	"tunnelwatch/internal/client/credential"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "tunnelwatch",
	Short: "查看隧道代理转发的 HTTP 请求",
	Long: `tunnelwatch 连接日志服务端，实时展示经由隧道转发的 HTTP 请求。

不带子命令运行时等同于 watch。`,
	SilenceUsage: true,
	RunE:         runWatch,
}

// Execute 运行根命令。
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "配置文件（默认 $HOME/.tunnelwatch.yaml）")
	pf.StringP("server", "s", "http://127.0.0.1:8080", "日志服务端地址")
	pf.String("token", "", "管理员 token（默认读取已保存的 token）")
	pf.String("token-file", "", "token 保存路径（默认 $HOME/.tunnelwatch/token）")
	pf.StringP("filter", "f", "", "初始过滤条件（按 path 子串匹配，不区分大小写）")
	pf.String("theme", "dark", "配色：dark 或 light")
	pf.String("log-level", "info", "日志级别：debug, info, warn, error")
	pf.String("log-file", "tunnelwatch-client.log", "交互模式下的日志文件")
	pf.Duration("status-interval", 5*time.Second, "隧道状态轮询间隔")
	pf.Duration("timeout", 10*time.Second, "HTTP 请求超时")

	for _, name := range []string{"server", "token", "token-file", "filter", "theme", "log-level", "log-file", "status-interval", "timeout"} {
		cobra.CheckErr(viper.BindPFlag(name, pf.Lookup(name)))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".tunnelwatch")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("TUNNELWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

// setupLogging 配置 logrus；交互模式下写文件，避免干扰终端界面。
func setupLogging(interactive bool) (io.Closer, error) {
	switch strings.ToLower(viper.GetString("log-level")) {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if !interactive {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(viper.GetString("log-file"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败：%w", err)
	}
	log.SetOutput(f)
	return f, nil
}

// buildConfig 从 viper 读取公共配置并解析 token。
func buildConfig() (app.Config, error) {
	path := viper.GetString("token-file")
	if path == "" {
		p, err := credential.DefaultPath()
		if err != nil {
			return app.Config{}, err
		}
		path = p
	}
	fs := credential.NewFileStore(path)

	var prompt credential.Prompter
	if term.IsTerminal(int(os.Stdin.Fd())) {
		prompt = credential.TerminalPrompt(os.Stdin, os.Stderr)
	}
	token, err := credential.Resolve(viper.GetString("token"), fs, prompt)
	if err != nil {
		return app.Config{}, err
	}

	return app.Config{
		Server:         viper.GetString("server"),
		Token:          token,
		Filter:         viper.GetString("filter"),
		Theme:          viper.GetString("theme"),
		StatusInterval: viper.GetDuration("status-interval"),
		RequestTimeout: viper.GetDuration("timeout"),
		OnUnauthorized: func() {
			log.Warnf("服务端拒绝了 token，清除已保存的 token：%s", fs.Path())
			if err := fs.Clear(); err != nil {
				log.Errorf("%v", err)
			}
		},
	}, nil
}
