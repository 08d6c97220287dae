// Command stepflowd loads a step project from disk and serves it: steps are
// discovered from the configured steps directory, wired into the topic
// graph, and made reachable through a minimal HTTP trigger endpoint that
// turns each request into an in-process manual emit. It is an illustration
// of wiring the core
// together, not a general trigger framework — HTTP routing, auth, and cron
// scheduling are left to a host application.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goa.design/clue/log"

	"goa.design/stepflow/config"
	"goa.design/stepflow/event"
	"goa.design/stepflow/executor"
	"goa.design/stepflow/schema"
	"goa.design/stepflow/step"
	"goa.design/stepflow/trace"
)

func main() {
	var (
		configF = flag.String("config", "stepflow.yaml", "path to the project configuration file")
		addrF   = flag.String("addr", ":8080", "HTTP trigger listen address")
		dbgF    = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
	}

	if err := run(ctx, *configF, *addrF); err != nil {
		log.Fatal(ctx, err)
	}
}

func run(ctx context.Context, configPath, addr string) error {
	project, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	stateStore, err := config.BuildState(project.State)
	if err != nil {
		return fmt.Errorf("build state store: %w", err)
	}
	streamRegistry, err := config.BuildStream(project.Stream)
	if err != nil {
		return fmt.Errorf("build stream registry: %w", err)
	}

	logger := trace.NewClueLogger()
	tracer := trace.NewOtelTracer("stepflow")
	metrics := trace.NewOtelMetrics("stepflow")

	registry := step.New(
		step.WithSchemaValidator(schema.New()),
		step.WithStreamLister(streamRegistry),
		step.WithLogger(logger),
	)

	steps, err := step.Load(project.StepsDir)
	if err != nil {
		return fmt.Errorf("load steps: %w", err)
	}
	for _, st := range steps {
		if _, err := registry.AddStep(ctx, st); err != nil {
			return fmt.Errorf("register step %q: %w", st.Name(), err)
		}
	}
	log.Info(ctx, log.KV{K: "steps_loaded", V: len(steps)})

	ex := executor.New(executor.WithDefaultRunners(executor.NewRunnerRegistry()), stateStore, streamRegistry,
		executor.WithLogger(logger), executor.WithTracer(tracer), executor.WithMetrics(metrics),
		executor.WithPayloadValidator(schema.New()))
	manager := event.NewManager(registry, ex, event.WithLogger(logger), event.WithTracer(tracer), event.WithMetrics(metrics))
	ex.SetEmitter(manager)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /emit/{topic}", emitHandler(manager, logger))

	server := &http.Server{Addr: addr, Handler: mux}
	errc := make(chan error, 1)
	go func() {
		log.Info(ctx, log.KV{K: "addr", V: addr}, log.KV{K: "msg", V: "http trigger listening"})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		return fmt.Errorf("http trigger server: %w", err)
	case s := <-sig:
		log.Info(ctx, log.KV{K: "signal", V: s.String()}, log.KV{K: "msg", V: "shutting down"})
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "http shutdown"})
	}

	manager.Wait()
	return nil
}

// emitHandler translates an HTTP POST into a manually triggered event.
// CLI, cron, and other trigger sources are external collaborators that
// call Manager.Emit the same way.
func emitHandler(manager *event.Manager, logger trace.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic := r.PathValue("topic")
		var data json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil && r.ContentLength != 0 {
			http.Error(w, fmt.Sprintf("decode body: %v", err), http.StatusBadRequest)
			return
		}

		traceID := trace.NewID()
		ev := event.Event{Topic: topic, Data: data, TraceID: traceID, Logger: logger}
		if err := manager.Emit(r.Context(), ev, event.ModeAsync, ""); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"traceId": traceID})
	}
}
