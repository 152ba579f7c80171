package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hc-nolan/ratingrelay/internal/ledger"
	"github.com/hc-nolan/ratingrelay/internal/musicbrainz"
	"github.com/hc-nolan/ratingrelay/internal/plex"
	"github.com/hc-nolan/ratingrelay/internal/relay"
	"github.com/hc-nolan/ratingrelay/internal/services"
	"github.com/hc-nolan/ratingrelay/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
	httpClient *http.Client
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	HTTPClient *http.Client
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Runner{
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
		httpClient: opts.HTTPClient,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		relayCommand, resetCommand, setupCommand, statusCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	cfg, err := shared.LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if level, err := log.ParseLevel(cfg.Relay.LogLevel); err == nil {
		shared.SetLogLevel(r.logger, level)
	}
	return cfg, nil
}

func (r *Runner) openLedger(cfg *shared.Config) (*sql.DB, *ledger.Ledger, error) {
	db, err := shared.NewDatabase(cfg.Relay.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, ledger.New(db), nil
}

// buildEngine wires up the full collaborator set for a pass. Taste
// services whose credentials are absent or invalid are skipped with a
// warning; the engine itself fails fast when none remain.
func (r *Runner) buildEngine(ctx context.Context, cfg *shared.Config, led *ledger.Ledger, progress chan<- relay.ProgressUpdate) (*relay.Engine, error) {
	resolver := musicbrainz.NewResolver(musicbrainz.NewClient("", r.httpClient), r.logger)

	source, err := plex.NewServer(ctx, cfg.Plex, r.httpClient, r.logger)
	if err != nil {
		return nil, err
	}

	var adapters []services.Adapter

	lbz, err := services.NewListenBrainz(cfg.ListenBrainz, resolver, r.httpClient, r.logger)
	if err != nil {
		r.logger.Warn("skipping ListenBrainz", "err", err)
	} else if lbz != nil {
		adapters = append(adapters, lbz)
	} else {
		r.logger.Info("ListenBrainz credentials not provided, skipping")
	}

	lfm, err := services.NewLastFM(cfg.LastFM, r.httpClient, r.logger)
	if err != nil {
		r.logger.Warn("skipping Last.fm", "err", err)
	} else if lfm != nil {
		adapters = append(adapters, lfm)
	} else {
		r.logger.Info("Last.fm credentials not provided, skipping")
	}

	return relay.NewEngine(relay.EngineOpts{
		Source:   source,
		Resolver: resolver,
		Ledger:   led,
		Adapters: adapters,
		Config:   cfg,
		Logger:   r.logger,
		Progress: progress,
	})
}

// Relay runs one reconciliation pass.
func (r *Runner) Relay(ctx context.Context, cmd *cli.Command) error {
	start := time.Now()

	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Bool("two-way") {
		cfg.Relay.TwoWay = true
	}
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	db, led, err := r.openLedger(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Progress updates stream to the console while the pass runs.
	progressCh := make(chan relay.ProgressUpdate, 50)
	go func() {
		for update := range progressCh {
			switch update.Phase {
			case relay.ApplyResets, relay.PushAdditions:
				fmt.Fprintf(r.output, "  [%d/%d] %s\n", update.Step, update.Total, update.Message)
			default:
				fmt.Fprintf(r.output, "%s\n", update.Message)
			}
		}
	}()

	engine, err := r.buildEngine(ctx, cfg, led, progressCh)
	if err != nil {
		close(progressCh)
		return err
	}

	result, err := engine.Run(ctx)
	close(progressCh)

	if err != nil {
		return err
	}

	r.writeStats(result, time.Since(start))
	if result.Degraded {
		r.logger.Warn("pass finished degraded: at least one service was abandoned partway")
	}
	return nil
}

// Reset withdraws all previously pushed feedback. Destructive; requires
// typed confirmation unless --yes is passed.
func (r *Runner) Reset(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	if !cmd.Bool("yes") {
		fmt.Fprint(r.output,
			"Reset mode withdraws all loved/hated feedback on every configured service. "+
				"This cannot be undone. To continue, type 'reset': ")
		answer, _ := bufio.NewReader(r.input).ReadString('\n')
		if strings.TrimSpace(answer) != "reset" {
			return shared.ErrResetDeclined
		}
	}

	db, led, err := r.openLedger(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	engine, err := r.buildEngine(ctx, cfg, led, nil)
	if err != nil {
		return err
	}

	result, err := engine.ResetAll(ctx, cmd.Bool("full"))
	if err != nil {
		return err
	}

	for name, count := range result.Adapters {
		r.logger.Info("service reset complete", "service", name, "withdrawn", count)
	}
	if cmd.Bool("full") {
		r.logger.Info("source ratings cleared", "count", result.SourceReset)
	}
	r.logger.Info("ledger purged", "entries", result.LedgerPurged)
	return nil
}

// Setup creates a starter config file and initializes the database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		r.logger.Warn("config file not created", "err", err)
	} else {
		r.logger.Info("created config file", "path", path)
	}

	cfg, err := shared.LoadConfig(path)
	if err != nil {
		return err
	}

	db, _, err := r.openLedger(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Info("database initialized", "path", cfg.Relay.Database)
	return nil
}

// Status prints ledger partition counts.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, led, err := r.openLedger(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, p := range ledger.Partitions {
		count, err := led.Count(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.output, "%-14s %d\n", p.String()+":", count)
	}
	return nil
}
