package runtime

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	errspkg "github.com/jdalberg/acs/internal/runtime/errors"
	loggingpkg "github.com/jdalberg/acs/internal/runtime/logging"
)

const (
	readHeaderTimeout = 10 * time.Second
	abandonGrace      = time.Second
)

// Run starts the web server, the policy consumer and the event producer and
// supervises them until one of them stops or ctx is cancelled.
//
// Policies arriving on the intake queue are delivered from this loop. The
// first task to stop ends the loop; Run then tears everything down and
// returns that task's *TaskExit. Cancelling ctx is a clean shutdown and
// returns nil.
func (s *Service) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errspkg.ErrServiceRunning
	}

	if err := s.ensureKafkaTopics(ctx); err != nil {
		_ = s.transport.Close()
		return err
	}

	ln, err := s.listen()
	if err != nil {
		_ = s.transport.Close()
		return err
	}

	metricsServer := s.startMetricsServer()

	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// producerCtx survives ctx; teardown cancels it once draining times out.
	consumerCtx, cancelConsumer := context.WithCancel(ctx)
	producerCtx, cancelProducer := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelConsumer()
	defer cancelProducer()

	exits := make(chan *TaskExit, 3)
	s.launch(TaskWebServer, exits, func() error {
		return ignoreServerClosed(server.Serve(ln))
	})
	s.launch(TaskPolicyConsumer, exits, func() error {
		return routerRun(s.router, consumerCtx)
	})
	s.launch(TaskEventProducer, exits, func() error {
		return s.producer.run(producerCtx)
	})

	s.Logger.Info("Bridge started", loggingpkg.LogFields{
		"listen_address": ln.Addr().String(),
		"inform_topic":   s.Conf.InformEventsTopic,
		"policy_topic":   s.Conf.PolicyQueueTopic,
	})

	exit := s.supervise(ctx, exits)
	running := 3
	if exit != nil {
		running--
	}
	s.teardown(server, metricsServer, exits, running, cancelConsumer, cancelProducer)

	// A task ending because ctx was cancelled is part of a clean shutdown.
	if exit != nil && ctx.Err() == nil {
		return exit
	}
	return nil
}

// supervise is the control loop. It returns the first task exit, or nil when
// ctx ends.
func (s *Service) supervise(ctx context.Context, exits <-chan *TaskExit) *TaskExit {
	for {
		select {
		case exit := <-exits:
			if ctx.Err() != nil {
				s.Logger.Info("Task stopped on shutdown", loggingpkg.LogFields{"task": exit.Task})
				return exit
			}
			s.metrics.RecordTaskExit(exit.Task)
			s.Logger.Error("Supervised task exited, shutting down", exit.Err, loggingpkg.LogFields{"task": exit.Task})
			return exit
		case policy := <-s.policies.Items():
			s.intake(ctx, policy)
		case <-ctx.Done():
			s.Logger.Info("Shutdown requested", loggingpkg.LogFields{"cause": context.Cause(ctx).Error()})
			return nil
		}
	}
}

// launch runs fn on its own goroutine and reports its end on exits. A panic
// is reported as an exit with the panic as its error.
func (s *Service) launch(task string, exits chan<- *TaskExit, fn func() error) {
	go func() {
		var err error
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic: %v", rec)
				s.Logger.Error("Recovered panic in supervised task", err, loggingpkg.LogFields{
					"task":  task,
					"stack": string(debug.Stack()),
				})
			}
			exits <- &TaskExit{Task: task, Err: err}
		}()
		err = fn()
	}()
}

// teardown stops the server, lets the producer drain the queue within the
// shutdown timeout, then closes the router and the broker clients.
func (s *Service) teardown(server, metricsServer *http.Server, exits <-chan *TaskExit, running int, cancelConsumer, cancelProducer context.CancelFunc) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Conf.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.Error("HTTP server shutdown failed", err, nil)
		_ = server.Close()
	}

	s.events.Close()
	s.policies.Detach()
	cancelConsumer()
	if err := s.router.Close(); err != nil {
		s.Logger.Error("Closing policy router failed", err, nil)
	}

	s.awaitTasks(shutdownCtx, exits, &running)
	if running > 0 {
		s.Logger.Error("Shutdown timed out, abandoning queued events", shutdownCtx.Err(), loggingpkg.LogFields{
			"pending_events": s.events.Len(),
			"running_tasks":  running,
		})
		cancelProducer()
		_ = server.Close()
		graceCtx, cancelGrace := context.WithTimeout(context.Background(), abandonGrace)
		s.awaitTasks(graceCtx, exits, &running)
		cancelGrace()
	}

	if n := s.policies.Len(); n > 0 {
		s.Logger.Info("Dropping undelivered policy messages", loggingpkg.LogFields{"count": n})
	}

	if metricsServer != nil {
		_ = metricsServer.Close()
	}
	if err := s.transport.Close(); err != nil {
		s.Logger.Error("Closing broker clients failed", err, nil)
	}
	s.Logger.Info("Bridge stopped", nil)
}

func (s *Service) awaitTasks(ctx context.Context, exits <-chan *TaskExit, running *int) {
	for *running > 0 {
		select {
		case exit := <-exits:
			*running--
			s.Logger.Debug("Task stopped", loggingpkg.LogFields{"task": exit.Task})
		case <-ctx.Done():
			return
		}
	}
}

// startMetricsServer serves /metrics on the metrics port. It is not
// supervised; a failure is logged and the bridge keeps running.
func (s *Service) startMetricsServer() *http.Server {
	if s.registry == nil || s.Conf.MetricsPort <= 0 {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(s.Conf.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	s.Logger.Info("Starting metrics server", loggingpkg.LogFields{"address": server.Addr})
	go func() {
		if err := ignoreServerClosed(server.ListenAndServe()); err != nil {
			s.Logger.Error("Metrics server failed", err, loggingpkg.LogFields{"address": server.Addr})
		}
	}()
	return server
}
