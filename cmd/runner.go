package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/capsule/internal/identity"
	"github.com/desertthunder/capsule/internal/journal"
	"github.com/desertthunder/capsule/internal/mainloop"
	"github.com/desertthunder/capsule/internal/metrics"
	"github.com/desertthunder/capsule/internal/prompts"
	"github.com/desertthunder/capsule/internal/server"
	"github.com/desertthunder/capsule/internal/session"
	"github.com/desertthunder/capsule/internal/shared"
	"github.com/desertthunder/capsule/internal/signin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

// stateWait bounds how long the CLI waits for the session to reflect a sign-in or sign-out.
const stateWait = 10 * time.Second

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Dependencies are built lazily so commands such as setup never touch the identity provider.
type Runner struct {
	config   *shared.Config
	logger   *log.Logger
	output   io.Writer
	now      func() time.Time
	registry *prometheus.Registry
	recorder metrics.Recorder
	loop     *mainloop.Loop

	db       *sql.DB
	provider identity.Provider
	store    *session.Store
	prompts  *prompts.Generator
	listener *server.Loopback

	openBrowser shared.BrowserOpener
	closers     []func() error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config   *shared.Config
	Logger   *log.Logger
	Output   io.Writer
	Now      func() time.Time
	DB       *sql.DB
	Provider identity.Provider
	Store    *session.Store
	Prompts  *prompts.Generator
}

// NewRunner creates a new Runner with the provided configuration
//
// A Store passed in opts is used as is and never closed by the runner.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	registry := prometheus.NewRegistry()

	return &Runner{
		config:   opts.Config,
		logger:   opts.Logger,
		output:   opts.Output,
		now:      opts.Now,
		registry: registry,
		recorder: metrics.NewCollector(registry),
		loop:     mainloop.New(),
		db:       opts.DB,
		provider: opts.Provider,
		store:    opts.Store,
		prompts:  opts.Prompts,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, journalCommand, promptCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads configuration, applies the log level, and starts the optional metrics listener.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if r.config == nil {
		config, err := shared.LoadOrDefault(cmd.String("config"))
		if err != nil {
			return ctx, err
		}
		r.config = config
	}

	if lvl := cmd.String("log-level"); lvl != "" {
		level, err := log.ParseLevel(lvl)
		if err != nil {
			return ctx, fmt.Errorf("%w: log level %q", shared.ErrInvalidArgument, lvl)
		}
		shared.SetLogLevel(r.logger, level)
	}

	addr := cmd.String("metrics-addr")
	if addr == "" {
		addr = r.config.Metrics.Addr
	}
	if addr != "" {
		if err := r.serveMetrics(addr); err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

// After releases everything the command opened, newest first.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	r.Close()
	return nil
}

// Close runs the registered closers and stops the main loop.
func (r *Runner) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.Warn("cleanup failed", "error", err)
		}
	}
	r.closers = nil
	r.loop.Close()
}

func (r *Runner) onClose(fn func() error) {
	r.closers = append(r.closers, fn)
}

func (r *Runner) serveMetrics(addr string) error {
	router := server.NewRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handle("GET", "/metrics", metrics.Handler(r.registry))

	lb, err := server.StartLoopback(addr, router)
	if err != nil {
		return fmt.Errorf("failed to start metrics listener: %w", err)
	}
	r.listener = lb
	r.logger.Info("serving metrics", "addr", lb.Addr())

	r.onClose(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return lb.Shutdown(ctx)
	})
	return nil
}

func (r *Runner) cfg() *shared.Config {
	if r.config == nil {
		r.config = shared.DefaultConfig()
	}
	return r.config
}

// database opens the configured database and applies pending migrations.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	cfg := r.cfg().Database
	db, err := shared.NewDatabase(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	r.onClose(db.Close)
	return db, nil
}

// identity builds the Google provider from configuration.
func (r *Runner) identity() (identity.Provider, error) {
	if r.provider != nil {
		return r.provider, nil
	}

	cfg := r.cfg()
	if err := cfg.Credentials.Google.Validate(); err != nil {
		return nil, err
	}

	dir, err := cfg.Auth.ResolvedCredentialDir()
	if err != nil {
		return nil, err
	}
	cache, err := identity.NewCredentialCache(dir, "google")
	if err != nil {
		return nil, err
	}

	opts := identity.GoogleOptions{
		Client:      cfg.Credentials.Google,
		Cache:       cache,
		Logger:      r.logger,
		ExpirySkew:  cfg.Auth.ExpirySkew.Duration,
		OpenBrowser: r.openBrowser,
	}
	if cfg.Server.Host != "" {
		opts.ListenAddr = cfg.Server.Addr()
	}

	p, err := identity.NewGoogleProvider(opts)
	if err != nil {
		return nil, err
	}

	r.provider = p
	r.onClose(p.Close)
	return p, nil
}

// session returns the process-wide session store.
func (r *Runner) session() (*session.Store, error) {
	if r.store != nil {
		return r.store, nil
	}

	provider, err := r.identity()
	if err != nil {
		return nil, err
	}

	store, err := session.Initialize(provider, session.Options{Loop: r.loop, Logger: r.logger, Metrics: r.recorder})
	if err != nil {
		return nil, err
	}

	r.store = store
	r.onClose(func() error {
		store.Close()
		return nil
	})
	return store, nil
}

func (r *Runner) signInFlow() (*signin.Flow, error) {
	provider, err := r.identity()
	if err != nil {
		return nil, err
	}
	return signin.NewFlow(provider, signin.Options{
		Logger:  r.logger,
		Metrics: r.recorder,
		Timeout: r.cfg().Auth.SignInTimeout.Duration,
	}), nil
}

func (r *Runner) promptGenerator(ctx context.Context) (*prompts.Generator, error) {
	if r.prompts != nil {
		return r.prompts, nil
	}
	gen, err := prompts.NewFromConfig(ctx, r.cfg().Prompts, r.logger)
	if err != nil {
		return nil, err
	}
	r.prompts = gen
	return gen, nil
}

// repositories returns the journal and account repositories.
func (r *Runner) repositories() (*journal.Repository, *journal.AccountRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, nil, err
	}
	return journal.NewRepository(db), journal.NewAccountRepository(db), nil
}

// profile returns the signed-in profile or [shared.ErrNotAuthenticated].
func (r *Runner) profile() (*session.Profile, error) {
	store, err := r.session()
	if err != nil {
		return nil, err
	}

	p := store.CurrentProfile()
	if p == nil {
		return nil, fmt.Errorf("%w: run 'capsule auth login' first", shared.ErrNotAuthenticated)
	}
	return p, nil
}

// waitForState blocks until the store reports kind, ctx ends, or [stateWait] passes.
func waitForState(ctx context.Context, store *session.Store, kind session.Kind) (session.State, error) {
	view := store.NewView()
	defer view.Close()

	reached := make(chan session.State, 1)
	view.Subscribe(func(s session.State) {
		if s.Is(kind) {
			select {
			case reached <- s:
			default:
			}
		}
	})

	if s := store.CurrentState(); s.Is(kind) {
		return s, nil
	}

	ctx, cancel := context.WithTimeout(ctx, stateWait)
	defer cancel()

	select {
	case s := <-reached:
		return s, nil
	case <-ctx.Done():
		return store.CurrentState(), fmt.Errorf("%w: session did not become %s", shared.ErrTimeout, kind)
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
