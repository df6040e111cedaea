package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/ahrav/gavel-preload/infrastructure/memstat"
	"github.com/ahrav/gavel-preload/infrastructure/metrics"
	"github.com/ahrav/gavel-preload/infrastructure/power"
	"github.com/ahrav/gavel-preload/infrastructure/procfs"
	"github.com/ahrav/gavel-preload/infrastructure/readahead"
	"github.com/ahrav/gavel-preload/infrastructure/stateio"
	"github.com/ahrav/gavel-preload/internal/application"
	"github.com/ahrav/gavel-preload/internal/domain"
)

// daemon wires the core model against its external collaborators and
// drives the scan/update/predict/save event loop described in
// SPEC_FULL.md 5.
type daemon struct {
	cfg        *application.Config
	configPath string
	state      *domain.State
	vomm       *domain.VOMMTree

	spy     *application.Spy
	prophet *application.Prophet
	clock   *application.VirtualClock
	metrics *metrics.Collector

	logFile *os.File
	logger  *log.Logger
}

func newDaemon(cfg *application.Config, configPath string) (*daemon, error) {
	d := &daemon{cfg: cfg, configPath: configPath, state: domain.NewState(), vomm: domain.NewVOMMTree()}

	if err := d.openLog(); err != nil {
		return nil, err
	}

	if err := stateio.Load(cfg.StateFile, d.state); err != nil {
		// Per the error taxonomy, a corrupt or version-skewed state file
		// is recoverable: log it and start from an empty model rather
		// than refuse to run.
		d.logger.Printf("state load failed, starting empty: %v", err)
		d.state = domain.NewState()
	}

	// Seed the VOMM bigram layer from the pairwise Markov model so the
	// sequence predictor isn't cold on restart.
	var exes []*domain.Exe
	for e := range d.state.Exes() {
		exes = append(exes, e)
	}
	d.vomm.Hydrate(exes, func(h domain.MarkovHandle) *domain.MarkovEdge {
		edge, ok := d.state.MarkovByHandle(h)
		if !ok {
			return nil
		}
		return edge
	})

	var powerState *power.Reader
	if cfg.RespectPowerState {
		powerState = power.NewReader()
	}

	d.metrics = metrics.NewCollector()

	onSkip := func(pid int, err error) {
		d.metrics.IncError("ObservationTransient")
		d.logger.Printf("skipping pid %d: %v", pid, err)
	}

	d.spy = &application.Spy{
		Enumerator:  &procfs.Enumerator{OnSkip: onSkip},
		MapReader:   &procfs.MapReader{OnSkip: onSkip},
		MinSize:     cfg.Model.MinSize,
		VommEnabled: cfg.VommEnabled,
		ShimMatcher: procfs.ShimMatcher{},
	}
	if powerState != nil {
		d.spy.PowerState = powerState
	}

	d.prophet = &application.Prophet{
		MemStat: &memstat.Reader{},
		Scheduler: &readahead.Scheduler{
			Strategy:      cfg.Prefetch.SortStrategy(),
			BlockResolver: readahead.StatBlockResolver{},
			Prefetcher:    readahead.UnixPrefetcher{},
			MaxProcs:      cfg.Prefetch.MaxProcs,
			OnAdvisoryError: func(req readahead.Request, err error) {
				d.metrics.IncPrefetchFailed()
				d.logger.Printf("prefetch advisory failed for %s: %v", req.Path, err)
			},
		},
		SafetyMarginPct: cfg.Model.MemorySafetyMarginPct,
	}

	d.clock = application.NewVirtualClock(cfg.Model.CycleSec)

	return d, nil
}

// openLog points d.logger at cfg.LogFile, or stderr when unset. Called
// at startup and again on SIGHUP to implement logrotate-style reopen.
func (d *daemon) openLog() error {
	if d.cfg.LogFile == "" {
		d.logger = log.New(os.Stderr, "preloadd: ", log.LstdFlags)
		return nil
	}

	f, err := os.OpenFile(d.cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	old := d.logFile
	d.logFile = f
	d.logger = log.New(f, "preloadd: ", log.LstdFlags)
	if old != nil {
		old.Close()
	}
	return nil
}

func (d *daemon) closeLog() {
	if d.logFile != nil {
		d.logFile.Close()
	}
}

// reloadConfig re-reads and validates the configuration file and
// reopens the log, per the SIGHUP contract. The event loop's interval
// and prefetch scheduler are intentionally left untouched until the
// next restart: a live reload affects logging and the state file path
// used by later saves, matching preload.c's conf_reload which likewise leaves
// already-constructed workers in place.
func (d *daemon) reloadConfig(path string) {
	cfg, err := application.LoadConfig(path)
	if err != nil {
		d.logger.Printf("SIGHUP: config reload failed, keeping current config: %v", err)
		return
	}
	d.cfg = cfg
	if err := d.openLog(); err != nil {
		d.logger.Printf("SIGHUP: log reopen failed: %v", err)
		return
	}
	d.logger.Printf("SIGHUP: configuration reloaded")
}

// dumpStats writes a one-shot statistics summary to the log, per the
// SIGUSR1 contract.
func (d *daemon) dumpStats() {
	s := application.Stats(d.state)
	d.metrics.SetModelStats(s)
	d.logger.Printf("stats: exes=%d maps=%d markovs=%d running=%d time=%.0f dirty=%v",
		s.NumExes, s.NumMaps, s.NumMarkovs, s.RunningCount, s.VirtualTime, s.Dirty)
}

// save persists the model and logs the invalidation sweep outcome, per
// the SIGUSR2/exit contract.
func (d *daemon) save() {
	replaced, err := stateio.Save(d.cfg.StateFile, d.state, stateio.OSStater{})
	if err != nil {
		d.metrics.IncError("StateIoError")
		d.logger.Printf("state save failed: %v", err)
		return
	}
	for _, r := range replaced {
		d.metrics.IncInvalidationReplaced()
		d.logger.Printf("invalidation: %s replaced (mtime %d -> %d)", r.Path, r.OldUpdateTime, r.NewUpdateTime)
	}
}

// scanTick runs one Spy.Scan half-cycle.
func (d *daemon) scanTick(ctx context.Context) *application.ScanResult {
	d.state.Time += d.clock.Advance()
	result, err := d.spy.Scan(ctx, d.state, d.vomm)
	if err != nil {
		d.metrics.IncError("ObservationTransient")
		d.logger.Printf("scan failed: %v", err)
		return &application.ScanResult{}
	}
	return result
}

// updateTick runs the Spy.UpdateModel half-cycle followed by one full
// Prophet prediction tick.
func (d *daemon) updateTick(ctx context.Context, scan *application.ScanResult) {
	d.state.Time += d.clock.Advance()
	d.spy.UpdateModel(ctx, d.state, scan)

	result, err := d.prophet.Run(ctx, d.state, d.vomm)
	if err != nil {
		d.metrics.IncError("ObservationTransient")
		d.logger.Printf("prediction tick failed: %v", err)
		return
	}
	d.metrics.ObservePrefetch(result, result.BudgetUsed)
	d.metrics.SetMemStat(d.state.MemStat)
	d.metrics.SetModelStats(application.Stats(d.state))
}
