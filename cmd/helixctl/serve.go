package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"helixsim/internal/config"
	"helixsim/internal/growth"
	"helixsim/internal/platform"
	"helixsim/internal/stream"
	helix "helixsim/pkg/helixsim"
)

const shutdownTimeout = 5 * time.Second

type serveCommand struct {
	addr     *string
	strain   *string
	seed     *int64
	interval *time.Duration
	maxTicks *int
	paused   *bool
	record   *bool
}

func newServeCommand(app *kingpin.Application, cfg config.Config) *serveCommand {
	cmd := app.Command("serve", "Run a live culture behind an HTTP and websocket API.")
	return &serveCommand{
		addr:     cmd.Flag("addr", "Listen address.").Default(cfg.Serve.Addr).String(),
		strain:   cmd.Flag("strain", "Initial strain key, or custom.").Short('s').Default(cfg.Growth.Strain).String(),
		seed:     cmd.Flag("seed", "Random seed; 0 picks one.").Default("0").Int64(),
		interval: cmd.Flag("interval", "Delay between ticks.").Default(cfg.Growth.Interval.String()).Duration(),
		maxTicks: cmd.Flag("max-ticks", "Stop stepping after this many ticks; 0 runs until stopped.").Default("0").Int(),
		paused:   cmd.Flag("paused", "Start with the driver paused.").Bool(),
		record:   cmd.Flag("record", "Record the culture as a growth run on shutdown.").Bool(),
	}
}

func (c *serveCommand) run(ctx context.Context, e *env) error {
	strain, err := helix.ResolveStrain(*c.strain)
	if err != nil {
		return err
	}
	sim := growth.NewSimulation(strain, *c.seed)
	driver := platform.NewDriver(*c.interval)
	hub := stream.NewHub(e.logger)
	server := stream.NewServer(sim, driver, hub, e.logger)
	driver.OnChange(server.PublishDriver)
	if *c.paused {
		driver.Pause()
	}

	ln, err := net.Listen("tcp", *c.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", *c.addr, err)
	}
	defer ln.Close()
	httpServer := &http.Server{Handler: server.Handler(), ReadHeaderTimeout: 10 * time.Second}

	sup := platform.NewSupervisor(platform.SupervisorPolicy{MaxRestarts: 5}, platform.SupervisorHooks{
		OnTaskRestart: func(name string, err error, restarts int) {
			e.logger.Warn("task restarted", "task", name, "err", err, "restarts", restarts)
		},
		OnTaskPermanentFailure: func(name string, err error, restarts int) {
			e.logger.Error("task failed", "task", name, "err", err, "restarts", restarts)
		},
	})
	defer sup.StopAll()

	stepper := server.Stepper(*c.maxTicks)
	if err := sup.Start(ctx, platform.TaskSpec{Name: "driver", Restart: platform.RestartTransient}, func(ctx context.Context) error {
		return driver.Serve(ctx, stepper)
	}); err != nil {
		return err
	}
	// The listener is bound once above, so a failed Serve is reported
	// rather than retried against a closed socket.
	var httpErr error
	if err := sup.Start(ctx, platform.TaskSpec{Name: "http", Restart: platform.RestartTemporary}, func(ctx context.Context) error {
		errCh := make(chan error, 1)
		go func() { errCh <- httpServer.Serve(ln) }()
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			httpErr = err
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				httpErr = err
				return err
			}
			return nil
		}
	}); err != nil {
		return err
	}

	e.logger.Info("serving culture", "addr", ln.Addr().String(), "strain", strain.Name, "seed", sim.Seed())
	fmt.Fprintf(e.stdout, "listening=%s strain=%q seed=%d\n", ln.Addr(), strain.Key, sim.Seed())

	httpDone := make(chan struct{})
	go func() {
		sup.Wait("http")
		close(httpDone)
	}()
	select {
	case <-ctx.Done():
	case <-httpDone:
	}
	sup.StopAll()
	hub.Close()

	var serveErr error
	if httpErr != nil && !shutdownError(httpErr) {
		serveErr = fmt.Errorf("http server: %w", httpErr)
	}

	if *c.record {
		client, err := e.openClient()
		if err != nil {
			return err
		}
		defer client.Close()
		summary, err := client.RecordCulture(context.Background(), sim)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "run_id=%s ticks=%d artifacts=%s\n", summary.RunID, summary.Snapshot.TimeStep, summary.ArtifactsDir)
	}
	return serveErr
}

// shutdownError reports whether err only records that serve was asked to stop.
func shutdownError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
