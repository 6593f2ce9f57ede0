package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"rollroom/internal/config"
	"rollroom/internal/game"
	"rollroom/internal/httpapi"
	"rollroom/internal/logging"
	"rollroom/internal/room"
)

func main() {
	// Optional .env for local development; real env vars win.
	_ = godotenv.Load()

	cfg := &config.Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func newCmd(cfg *config.Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ROLLROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:     "rollroom",
		Short:   "A shared-room multiplayer dice roller over WebSockets.",
		Args:    cobra.ExactArgs(0),
		Version: httpapi.ServerVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: ROLLROOM_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: ROLLROOM_PORT)")
	fs.DurationVar(&cfg.RevealDelay, "reveal-delay", 3*time.Second, "pause before broadcasting round results, 0 to disable (env: ROLLROOM_REVEAL_DELAY)")
	fs.IntVar(&cfg.ChatLimit, "chat-limit", 500, "maximum chat message length (env: ROLLROOM_CHAT_LIMIT)")
	fs.StringVar(&cfg.LogFile, "log-file", "", "write logs to a rotating file instead of stderr (env: ROLLROOM_LOG_FILE)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "enable debug logging (env: ROLLROOM_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("rollroom v{{.Version}}\n")
	cmd.SilenceUsage = true

	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	log := logging.New(cfg.LogFile, cfg.Verbose)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rm := room.New(ctx, game.NewState(), room.Options{
		RevealDelay: cfg.RevealDelay,
		ChatLimit:   cfg.ChatLimit,
		Logger:      log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpapi.SetupRoutes(rm, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Infof("rollroom v%s listening on %s", httpapi.ServerVersion, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	rm.Inbox() <- room.Shutdown{}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
