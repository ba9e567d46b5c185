package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"rentchat/contract"
	"rentchat/domain"
	"rentchat/internal"
	"rentchat/notify"
	"rentchat/observability"
	"rentchat/repositories"
	"rentchat/runtime"
	"rentchat/runtime/workers"
	"rentchat/sink"
	"rentchat/transport"
)

const defaultCacheLimit = 200

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch <room-id>",
	Short: "Follow a conversation live and send messages from stdin",
	Long: "Opens a room with the full synchronization stack: cached snapshot,\n" +
		"REST first page, WebSocket push, polling fallback. Typed lines are\n" +
		"sent as messages; /quit exits.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roomID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid room id %q", args[0])
		}

		config, err := loadConfig()
		if err != nil {
			return err
		}
		return watch(config, domain.RoomID(roomID))
	},
}

func watch(config internal.Config, room domain.RoomID) error {
	log := newLogger(config)

	metrics := observability.NewMetrics()
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("metrics registration failed: %w", err)
	}
	if config.MetricsPort > 0 {
		go func() {
			addr := fmt.Sprintf("localhost:%d", config.MetricsPort)
			log.Info("Serving metrics", "address", addr)
			_ = http.ListenAndServe(addr, promhttp.Handler())
		}()
	}

	rest := newRESTClient(log, config)
	push := transport.NewPushClient(log, config.PushURL, config.APIToken)
	uploader := transport.NewUploadClient(log, config.APIBaseURL, config.APIToken)

	opts := []runtime.EngineOption{
		runtime.WithNotifier(notify.NewNotifier(log, notify.NewGate(config.UserID), terminalPlatform{})),
	}
	var sinks []contract.EventSink
	if config.BadgerFilepath != "" {
		db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
			WithLoggingLevel(badger.WARNING))
		if err != nil {
			return fmt.Errorf("snapshot cache opening failed: %w", err)
		}
		defer func() {
			log.Info("Closing snapshot cache...")
			_ = db.Close()
		}()

		limit := defaultCacheLimit
		if config.CacheLimit != nil {
			limit = *config.CacheLimit
		}
		cache := repositories.NewTimelineCache(db, log, limit)
		opts = append(opts, runtime.WithCache(cache))
		sinks = append(sinks, sink.NewCacheSink(cache, log))
	}

	engine := runtime.NewEngine(
		log, config.UserID,
		rest, push, uploader,
		metrics, config.BufferSize, opts...,
	)
	engine.SetView(runtime.View{
		SurfaceOpen: true, PageVisible: true,
		NearBottom: true, NotificationOK: true,
	})

	registry := runtime.NewRegistry()
	registry.Subscribe("console", room, newConsoleSink(config.UserID))

	coordinator := runtime.NewCoordinator(
		log, engine, push, push,
		workers.NewSupervisor(log), registry, config.Intervals(), metrics,
	)
	coordinator.AddSinks(sinks...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	coordinator.Open(ctx)
	defer coordinator.Close()

	if err := engine.OpenRoom(ctx, room); err != nil {
		return err
	}
	defer engine.CloseRoom(room)

	go readLines(ctx, stop, engine, config.UserID, room, log)

	<-ctx.Done()
	fmt.Println("\nBye.")
	return nil
}

// readLines turns stdin lines into sends until the context ends.
func readLines(ctx context.Context, stop func(), engine *runtime.Engine, userID string, room domain.RoomID, log *slog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" {
			stop()
			return
		}

		cmd := domain.SendMessageCommand{
			Room: room, SenderID: userID,
			Type: domain.TextMessage, Content: text,
		}
		if err := engine.Send(ctx, cmd, nil, ""); err != nil {
			log.Warn("Send failed", "room", room, "error", err)
		}
	}
}

// terminalPlatform renders notifications as a colored banner. Close is a
// no-op; a terminal line cannot be dismissed.
type terminalPlatform struct{}

type terminalHandle struct{}

func (terminalHandle) Close() {}

func (terminalPlatform) Show(_, title, body string) (notify.Handle, error) {
	banner := color.New(color.BgBlack, color.FgYellow).Render(title)
	fmt.Printf("%s %s\n", banner, body)
	return terminalHandle{}, nil
}
