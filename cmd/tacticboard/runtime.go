package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/lineupkit/tacticboard/internal/config"
	"github.com/lineupkit/tacticboard/internal/dispatcher"
	"github.com/lineupkit/tacticboard/internal/handlers"
	"github.com/lineupkit/tacticboard/internal/influx"
	"github.com/lineupkit/tacticboard/internal/logging"
	intOtel "github.com/lineupkit/tacticboard/internal/otel"
	"github.com/lineupkit/tacticboard/internal/playback"
	"github.com/lineupkit/tacticboard/internal/storage"
	"github.com/lineupkit/tacticboard/internal/timeline"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// AppName names log files and the service.
const AppName = "tacticboard"

// runtime holds everything a command needs beyond its own arguments.
type runtime struct {
	start    time.Time
	level    string
	slog     *logging.SlogManager
	logger   *slog.Logger
	dbLogger zerolog.Logger

	logFile     *os.File
	logPath     string
	metricsFile *os.File
	otel        *intOtel.Provider
	graylog     *logging.GraylogSink
	influx      *influx.Manager

	// active is read by the log context provider.
	active atomic.Pointer[timeline.Store]
}

// newRuntime loads configuration from configDir and sets up logging. A
// missing config file is not fatal; defaults apply.
func newRuntime(configDir string, stdout io.Writer) (*runtime, error) {
	rt := &runtime{start: time.Now(), slog: logging.NewSlogManager()}

	config.SetDefaults()
	cfgErr := config.Load(configDir)

	level := viper.GetString("logLevel")
	f, path, err := logging.OpenLogFile(viper.GetString("logsDir"), AppName, rt.start)
	if err != nil {
		return nil, err
	}
	rt.logFile, rt.logPath = f, path

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		if err := rt.setupOTel(otelCfg); err != nil {
			fmt.Fprintf(stdout, "otel disabled: %v\n", err)
		}
	}

	var extra []slog.Handler
	if gl := config.GetGraylogConfig(); gl.Enabled {
		sink, err := logging.NewGraylogSink(gl.Address)
		if err != nil {
			fmt.Fprintf(stdout, "graylog disabled: %v\n", err)
		} else {
			rt.graylog = sink
			extra = append(extra, sink.Handler(level))
		}
	}

	rt.level = level
	rt.slog.SetupWith(logging.Options{
		File:     rt.logFile,
		Level:    level,
		Provider: rt.logProvider(),
		Extra:    extra,
		Context:  rt.logContext,
	})
	rt.logger = rt.slog.Logger()
	rt.dbLogger = logging.NewZerolog(rt.logFile, level, "storage")

	if cfgErr != nil {
		rt.logger.Warn("Failed to load config, using defaults!", "error", cfgErr, "dir", configDir)
	} else {
		rt.logger.Info("Loaded config", "dir", configDir)
	}
	rt.logger.Info("Logging to file", "path", rt.logPath)
	return rt, nil
}

func (rt *runtime) setupOTel(cfg config.OTelConfig) error {
	otelCfg := intOtel.Config{
		Enabled:        true,
		ServiceName:    cfg.ServiceName,
		BatchTimeout:   cfg.BatchTimeout,
		LogWriter:      rt.logFile,
		MetricInterval: cfg.MetricInterval,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
	}
	if cfg.MetricsFile != "" {
		mf, err := os.OpenFile(cfg.MetricsFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open metrics file: %w", err)
		}
		rt.metricsFile = mf
		otelCfg.MetricWriter = mf
	}
	p, err := intOtel.New(otelCfg)
	if err != nil {
		return err
	}
	rt.otel = p
	return nil
}

func (rt *runtime) logProvider() *sdklog.LoggerProvider {
	if rt.otel == nil {
		return nil
	}
	return rt.otel.LoggerProvider()
}

// logContext tags every record with the open tactic and mode.
func (rt *runtime) logContext(context.Context) []slog.Attr {
	store := rt.active.Load()
	if store == nil {
		return nil
	}
	st := store.State()
	return []slog.Attr{
		slog.String("tacticId", st.Tactic.ID),
		slog.String("mode", timeline.ModeName(st.Mode)),
	}
}

// openBackend creates and initialises the configured storage backend.
func (rt *runtime) openBackend() (storage.Backend, error) {
	cfg := config.GetStorageConfig()
	b, err := storage.NewBackend(cfg, storage.Dependencies{Logger: rt.logger, DBLogger: rt.dbLogger})
	if err != nil {
		return nil, err
	}
	if err := b.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.Type, err)
	}
	rt.logger.Info("Storage backend initialized", "type", cfg.Type)
	return b, nil
}

// reporters returns the playback session sinks: the log, plus InfluxDB
// when enabled.
func (rt *runtime) reporters(ctx context.Context) []playback.Reporter {
	out := []playback.Reporter{playback.LogReporter{Logger: rt.logger}}
	ic := config.GetInfluxConfig()
	if !ic.Enabled {
		return out
	}
	m := influx.NewManager(ic, logging.NewZerolog(rt.logFile, rt.level, "influx"))
	if err := m.Connect(ctx); err != nil {
		rt.logger.Error("Failed to set up InfluxDB reporter", "error", err)
		return out
	}
	rt.influx = m
	return append(out, m)
}

// session is one editing session wired to the command surface.
type session struct {
	store      *timeline.Store
	scheduler  *playback.Scheduler
	service    *handlers.Service
	dispatcher *dispatcher.Dispatcher
}

// newSession builds a store, scheduler, handler service and dispatcher.
// backend may be nil.
func (rt *runtime) newSession(ctx context.Context, backend storage.Backend) (*session, error) {
	pc := config.GetPlaybackConfig()
	ac := config.GetAnnotationConfig()

	store := timeline.New(timeline.Options{
		DefaultFrameDurationMs: viper.GetInt("timeline.defaultFrameDurationMs"),
		MaxHistory:             ac.MaxHistory,
		EraserRadius:           ac.EraserRadius,
		Logger:                 rt.logger,
	})
	if pc.DefaultSpeed > 0 {
		store.SetSpeed(pc.DefaultSpeed)
	}
	rt.active.Store(store)

	sch, err := playback.New(store, playback.Options{
		TickInterval: pc.TickInterval,
		Logger:       rt.logger,
		Reporters:    rt.reporters(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	svc := handlers.NewService(ctx, handlers.Dependencies{
		Store:     store,
		Scheduler: sch,
		Backend:   backend,
		Logger:    rt.logger,
	})

	d, err := dispatcher.New(logging.NewDispatcherLogger(logging.NewZerolog(rt.logFile, rt.level, "dispatcher")))
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	svc.Register(d)
	rt.logger.Debug("Handlers registered with dispatcher", "commands", len(d.Commands()))

	return &session{store: store, scheduler: sch, service: svc, dispatcher: d}, nil
}

// close stops playback and drains queued commands.
func (s *session) close() {
	s.scheduler.Stop()
	s.dispatcher.Close()
}

// Close flushes and releases every sink.
func (rt *runtime) Close() error {
	var errs []error
	if rt.influx != nil {
		errs = append(errs, rt.influx.Close())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if rt.otel != nil {
		errs = append(errs, rt.otel.Shutdown(ctx))
	}
	if rt.graylog != nil {
		errs = append(errs, rt.graylog.Close())
	}
	if rt.metricsFile != nil {
		errs = append(errs, rt.metricsFile.Close())
	}
	if rt.logFile != nil {
		errs = append(errs, rt.logFile.Close())
	}
	return errors.Join(errs...)
}
