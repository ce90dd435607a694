package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sealbot/sealbot/internal/bus"
	"github.com/sealbot/sealbot/internal/cli"
	"github.com/sealbot/sealbot/internal/config"
	"github.com/sealbot/sealbot/internal/cursor"
	"github.com/sealbot/sealbot/internal/listener"
	"github.com/sealbot/sealbot/internal/logging"
	"github.com/sealbot/sealbot/internal/notify"
	"github.com/sealbot/sealbot/internal/playerok"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "run":
		cmdRun()
	case "status":
		cmdStatus()
	case "onboard":
		cli.RunOnboard()
	case "version", "--version", "-v":
		fmt.Println(cli.TitleStyle.Render(
			fmt.Sprintf("  %s sealbot v%s", cli.Logo, cli.Version),
		))
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	dim := cli.DimStyle.Render
	fmt.Println()
	fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("  %s sealbot", cli.Logo)) + dim(" — Playerok reselling automation"))
	fmt.Println()
	fmt.Println("  " + cli.BoldStyle.Render("Usage"))
	fmt.Println()
	fmt.Printf("    sealbot %-10s %s\n", "run", dim("Start the event listener"))
	fmt.Printf("    sealbot %-10s %s\n", "status", dim("Show configuration"))
	fmt.Printf("    sealbot %-10s %s\n", "onboard", dim("Initialize setup"))
	fmt.Printf("    sealbot %-10s %s\n", "version", dim("Show version"))
	fmt.Println()
}

func cmdRun() {
	cfg := mustLoadConfig()
	if cfg.Playerok.Token == "" {
		fmt.Println()
		fmt.Println(cli.ErrStyle.Render("  Error: No account token configured"))
		fmt.Println(cli.DimStyle.Render("  Run: sealbot onboard, or set SEALBOT_TOKEN"))
		fmt.Println()
		os.Exit(1)
	}

	slog.SetDefault(slog.New(logging.NewHandler(os.Stderr, &logging.Options{
		Level: slog.LevelInfo,
		Color: true,
	})))

	session, err := playerok.NewSession(playerok.SessionConfig{
		Token:      cfg.Playerok.Token,
		UserAgent:  cfg.Playerok.UserAgent,
		Proxy:      cfg.Playerok.Proxy,
		Timeout:    time.Duration(cfg.Playerok.RequestTimeout) * time.Second,
		MaxRetries: cfg.Playerok.MaxChallengeRetries,
	})
	if err != nil {
		fatal(err)
	}
	client := playerok.NewClient(session)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	account, err := client.Viewer(ctx)
	if err != nil {
		var unauthorized *playerok.UnauthorizedError
		if errors.As(err, &unauthorized) {
			fmt.Println()
			fmt.Println(cli.ErrStyle.Render("  Error: token rejected, the session is stale"))
			fmt.Println(cli.DimStyle.Render("  Grab a fresh token cookie and run: sealbot onboard"))
			fmt.Println()
			os.Exit(1)
		}
		fatal(err)
	}
	slog.Info("authenticated", "account", account.Username, "id", account.ID)

	store := mustOpenCursorStore(cfg)
	defer store.Close()

	eventBus := bus.NewEventBus()
	eventBus.Subscribe("log", logEvents)

	if cfg.Notifications.Discord.Enabled {
		notifier, err := notify.NewDiscord(cfg.Notifications.Discord, account.ID)
		if err != nil {
			fatal(err)
		}
		eventBus.Subscribe("discord", notifier.Handle, notifier.Kinds()...)
		slog.Info("discord notifications enabled", "channel", cfg.Notifications.Discord.ChannelID)
	}

	l := listener.New(client, store, listener.Options{
		PollInterval: time.Duration(cfg.Listener.PollInterval) * time.Second,
		PageSize:     cfg.Listener.PageSize,
	})

	go eventBus.Dispatch(ctx, l.Events())

	if err := l.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fatal(err)
	}
	slog.Info("shut down")
}

// logEvents is the always-on console subscriber.
func logEvents(_ context.Context, ev listener.Event) error {
	switch e := ev.(type) {
	case listener.ChatInitialized:
		slog.Debug("chat initialized", "chat", e.ChatID())
	case listener.NewMessage:
		author := ""
		if e.Message.User != nil {
			author = e.Message.User.Username
		}
		slog.Info("new message", "chat", e.ChatID(), "from", author, "preview", e.Message.Text)
	case listener.NewDeal:
		slog.Info("new deal", "deal", e.Deal.ID, "status", e.Deal.Status, "chat", e.ChatID())
	default:
		slog.Info("event", "kind", ev.Kind(), "chat", ev.ChatID())
	}
	return nil
}

func cmdStatus() {
	cfg, _ := config.Load()
	cli.RunStatus(cfg)
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", err)
	}
	return cfg
}

func mustOpenCursorStore(cfg *config.Config) cursor.Store {
	if !cfg.Cursors.Persist {
		return cursor.NewMemoryStore()
	}
	store, err := cursor.NewSQLiteStore(cfg.CursorDBPath())
	if err != nil {
		fatal(err)
	}
	slog.Info("cursor persistence enabled", "path", cfg.CursorDBPath())
	return store
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, cli.ErrStyle.Render("  Error: "+err.Error()))
	os.Exit(1)
}
