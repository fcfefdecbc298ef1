package app

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/solswap/router/internal/aggregator"
	"github.com/solswap/router/internal/audit"
	"github.com/solswap/router/internal/cache"
	"github.com/solswap/router/internal/config"
	routererr "github.com/solswap/router/internal/errors"
	"github.com/solswap/router/internal/execution"
	"github.com/solswap/router/internal/history"
	"github.com/solswap/router/internal/httpx"
	"github.com/solswap/router/internal/model"
	"github.com/solswap/router/internal/prices"
	"github.com/solswap/router/internal/providers"
	"github.com/solswap/router/internal/providers/debridge"
	"github.com/solswap/router/internal/providers/jupiterultra"
	"github.com/solswap/router/internal/providers/relay"
	"github.com/solswap/router/internal/routes"
	"github.com/solswap/router/internal/version"
	"github.com/solswap/router/internal/wallet"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner   *Runner
	flags    config.GlobalFlags
	settings config.Settings
	log      zerolog.Logger

	http       *httpx.Client
	priceSvc   *prices.Service
	wallet     wallet.Wallet
	relay      *relay.Client
	debridge   *debridge.Client
	ultra      *jupiterultra.Client
	validator  *routes.Validator
	routeCache *cache.Store
	sink       *audit.Sink
	history    *history.Store
	aggregator *aggregator.Aggregator
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	state.shutdown()
	if err == nil {
		return 0
	}
	fmt.Fprintln(r.stderr, "error:", err)
	return routererr.ExitCode(err)
}

func (s *runtimeState) shutdown() {
	if s.sink != nil {
		s.sink.Close()
	}
	if s.history != nil {
		_ = s.history.Close()
	}
	if s.routeCache != nil {
		_ = s.routeCache.Close()
	}
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Cross-chain swap quote aggregation and execution",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return routererr.Wrap(routererr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			s.log = newLogger(s.runner.stderr, settings.LogLevel)
			return s.buildServices()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&s.flags.ConfigPath, "config", "", "path to config file")
	flags.BoolVar(&s.flags.JSON, "json", false, "JSON output")
	flags.BoolVar(&s.flags.Plain, "plain", false, "plain key=value output")
	flags.StringVar(&s.flags.Timeout, "timeout", "", "provider request timeout (e.g. 20s)")
	flags.IntVar(&s.flags.Retries, "retries", -1, "provider request retries")
	flags.StringVar(&s.flags.PollInterval, "poll-interval", "", "confirmation poll interval (e.g. 2s)")
	flags.StringVar(&s.flags.LogLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		s.newQuoteCommand(),
		s.newExecuteCommand(),
		s.newRoutesCommand(),
		s.newProvidersCommand(),
		s.newHistoryCommand(),
		s.newVersionCommand(),
	)
	return cmd
}

func (s *runtimeState) buildServices() error {
	s.http = httpx.New(s.settings.Timeout, s.settings.Retries)
	s.priceSvc = prices.New(s.http, s.settings.PricesBaseURL, s.log)

	if key := s.settings.PrivateKey(); key != "" {
		w, err := wallet.NewSolanaWallet(s.settings.SolanaRPCURL, key)
		if err != nil {
			return err
		}
		s.wallet = w
	}

	s.relay = relay.New(s.http, s.settings.RelayBaseURL, s.priceSvc, s.wallet, s.log)
	s.debridge = debridge.New(s.http, s.settings.DebridgeBaseURL)
	s.ultra = jupiterultra.New(s.http, s.settings.UltraBaseURL)

	routeCache, err := cache.Open(s.settings.RouteCachePath, s.settings.RouteCacheLockPath)
	if err != nil {
		// The disk cache is an optimization; quoting works without it.
		s.log.Warn().Err(err).Msg("route cache unavailable, continuing without it")
		routeCache = nil
	}
	s.routeCache = routeCache
	s.validator = routes.NewValidator(s.relay, routeCache, s.settings.RouteCacheTTL, s.log)
	s.sink = audit.NewSink(s.settings.AuditPath, s.log)

	hist, err := history.Open(s.settings.HistoryPath, s.settings.HistoryLockPath)
	if err != nil {
		return err
	}
	s.history = hist

	s.aggregator = aggregator.New(
		[]providers.Adapter{s.relay, s.debridge, s.ultra},
		s.validator,
		s.sink,
		s.log,
	)
	return nil
}

func (s *runtimeState) newOrchestrator() *execution.Orchestrator {
	refreshers := map[model.Provider]execution.QuoteRefresher{
		model.ProviderRelay:    s.relay,
		model.ProviderDebridge: s.debridge,
		model.ProviderUltra:    s.ultra,
	}
	return execution.New(s.wallet, refreshers, s.relay, s.ultra, s.history, s.log, execution.Options{
		PollInterval: s.settings.PollInterval,
	})
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().Logger()
}
