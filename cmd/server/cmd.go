package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MysteryBlokHed/alheure/internal/bank"
	"github.com/MysteryBlokHed/alheure/internal/config"
	"github.com/MysteryBlokHed/alheure/internal/game"
	"github.com/MysteryBlokHed/alheure/internal/ws"
)

func newCmd() *cobra.Command {
	cfg := &config.Config{}
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "alheure",
		Short: "À l'heure, a French grammar elimination quiz for parties.",
		Long: `À l'heure runs a French grammar quiz on one shared screen. Players take
turns naming tenses, conjugating verbs and spotting direct and indirect
objects; two wrong answers and you are out, unless you win a buzzer showdown.`,
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       version,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(v, cmd.Flags()); err != nil {
				return err
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}

	config.Register(cmd.Flags(), cfg)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("alheure {{.Version}}\n")

	return cmd
}

func setupLogging(verbose bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)
	return zerologlog.Logger
}

func loadQuestions(path string) (map[bank.Category][]bank.Question, error) {
	var (
		c   bank.Content
		err error
	)
	if path == "" {
		c, err = bank.DefaultContent()
	} else {
		c, err = bank.LoadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return c.Questions()
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := setupLogging(cfg.Verbose)

	questions, err := loadQuestions(cfg.QuestionFile)
	if err != nil {
		return err
	}
	for cat, qs := range questions {
		logger.Debug().Str("category", string(cat)).Int("questions", len(qs)).Msg("question bank loaded")
	}

	rm := game.NewRoomManager(questions,
		game.WithSingleSession(cfg.SingleSession),
		game.WithLogger(logger),
		game.WithResultsFile(cfg.ExportFile),
	)

	r := newRouter(cfg, rm)
	sock := ws.New(rm, *cfg)
	io := sock.Mount(r)
	defer io.Close()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr()).Str("version", version).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
