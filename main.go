package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sasha-s/go-deadlock"
	"github.com/spf13/cobra"

	"macroprox/client"
	"macroprox/config"
	"macroprox/game"
	"macroprox/logger"
	"macroprox/server"
	"macroprox/tui"
)

// 命令行参数，覆盖配置中的默认值
var (
	envFile    string
	flagName   string
	flagColour string
	flagPort   int
)

// MacroProx 入口：host 本地游玩并提供服务，join 连接其他主机，serve 无界面服务
func main() {
	root := &cobra.Command{
		Use:          "macroprox",
		Short:        "Real-time multiplayer position sync over websocket",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env", "", "env file to load (default .env)")
	root.PersistentFlags().StringVar(&flagName, "name", "", "display name")
	root.PersistentFlags().StringVar(&flagColour, "colour", "", "player colour, a name or #rrggbb")
	root.PersistentFlags().IntVar(&flagPort, "port", 0, fmt.Sprintf("port to listen on or connect to (default %d)", config.DefaultPort))

	root.AddCommand(
		&cobra.Command{
			Use:   "host",
			Short: "Host a game and play on it",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(config.ModeHost, "")
			},
		},
		&cobra.Command{
			Use:   "join <host>",
			Short: "Join a game hosted elsewhere",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(config.ModeJoin, args[0])
			},
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Run a headless server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(config.ModeServe, "")
			},
		},
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(mode config.Mode, host string) error {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}
	settings, err := config.NewSettings(cfg, mode)
	if err != nil {
		return err
	}
	if flagName != "" {
		settings.Name = flagName
	}
	if flagColour != "" {
		if settings.Colour, err = config.ParseColour(flagColour); err != nil {
			return err
		}
	}
	if flagPort != 0 {
		settings.Port = flagPort
	}
	settings.Host = host

	// 终端界面占用 stdout，只有 serve 模式才写 stderr
	if err := logger.Init(logger.Options{FilePath: cfg.LogFile, Level: cfg.LogLevel, Console: mode == config.ModeServe}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	logger.Log.Infof("starting %s as %q", mode, settings.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := game.NewState(cfg.Spawn)
	watchLock(st, cfg)

	if settings.IsHost() {
		return runHost(ctx, cfg, settings, st)
	}
	return runJoin(ctx, cfg, settings, st)
}

// watchLock 锁等待超时视为锁不可用：状态转为 Error，进程不退出
func watchLock(st *game.State, cfg config.Config) {
	deadlock.Opts.DeadlockTimeout = cfg.LockTimeout
	deadlock.Opts.LogBuf = logger.Writer()
	deadlock.Opts.OnPotentialDeadlock = func() {
		st.Fail("shared state lock unavailable")
	}
}

func runHost(ctx context.Context, cfg config.Config, settings config.Settings, st *game.State) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	me := game.Player{ID: 0, Name: settings.Name, Colour: settings.Colour}
	if err := (game.DefaultMap{}).Load(st, me); err != nil {
		logger.Log.Errorf("load map: %v", err)
		st.SetError(err.Error())
	}

	h := server.NewHost(st, server.Options{
		BroadcastDelay:    cfg.BroadcastDelay,
		BroadcastInterval: cfg.BroadcastInterval,
	})
	go h.Run(ctx)

	addr := cfg.ListenAddr(settings.Port)
	serveErr := make(chan error, 1)
	go func() {
		err := h.ListenAndServe(ctx, addr)
		if err != nil {
			logger.Log.Errorf("%v", err)
			st.SetError(err.Error())
		}
		serveErr <- err
	}()

	if settings.Mode == config.ModeServe {
		select {
		case <-ctx.Done():
			logger.Log.Info("shutting down...")
			return nil
		case err := <-serveErr:
			return err
		}
	}
	return tui.Run(ctx, st, tui.Options{Title: "host " + addr, BaseSpeed: cfg.BaseSpeed})
}

func runJoin(ctx context.Context, cfg config.Config, settings config.Settings, st *game.State) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	addr := settings.JoinAddr()
	go func() {
		c, err := client.Dial(ctx, addr, st, client.Options{
			Name:            settings.Name,
			Colour:          settings.Colour,
			ForwardInterval: cfg.BroadcastInterval,
		})
		if err != nil {
			logger.Log.Errorf("%v", err)
			return
		}
		if err := c.Run(ctx); err != nil {
			logger.Log.Errorf("client: %v", err)
		}
	}()

	return tui.Run(ctx, st, tui.Options{Title: "join " + addr, BaseSpeed: cfg.BaseSpeed})
}
