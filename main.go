package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/eddielth/sensor2mqtt/config"
	"github.com/eddielth/sensor2mqtt/logger"
	"github.com/eddielth/sensor2mqtt/mqtt"
	"github.com/eddielth/sensor2mqtt/publish"
	"github.com/eddielth/sensor2mqtt/sensor"
	"github.com/eddielth/sensor2mqtt/source"
	"github.com/eddielth/sensor2mqtt/transform"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	interval := flag.Duration("interval", 0, "poll interval; 0 runs one cycle and exits")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	if err := logger.InitFromConfig(cfg.Logger.Level, cfg.Logger.FilePath,
		cfg.Logger.MaxSize, cfg.Logger.MaxBackups, cfg.Logger.Console); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Close()

	transforms, err := transform.NewManager(cfg.Transforms)
	if err != nil {
		logger.Error("failed to load record transforms: %v", err)
		return 1
	}

	app := &app{cfg: cfg, transforms: transforms}

	if *interval > 0 {
		return app.runLoop(*configPath, *interval)
	}
	if cfg.Collector.Interval > 0 {
		return app.runLoop(*configPath, cfg.Collector.Interval)
	}
	return app.runCycle()
}

// app holds the pieces shared between cycles. The config snapshot can be
// swapped by the file watcher while a loop is running.
type app struct {
	mu         sync.RWMutex
	cfg        *config.Config
	transforms *transform.Manager
}

func (a *app) snapshot() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// runCycle performs one complete poll-normalize-publish pass.
// Exit status: 0 when data was delivered, 1 otherwise.
func (a *app) runCycle() int {
	cfg := a.snapshot()
	logger.Info("starting sensor poll cycle")

	ctx := context.Background()
	readings := collectReadings(ctx, []source.Source{
		source.NewLiquidctlSource(cfg.Liquidctl.DeviceName),
		source.NewNvidiaSource(),
	})

	if len(readings) == 0 {
		logger.Error("no data from liquidctl or nvidia-smi, nothing to publish")
		return 1
	}

	client, err := mqtt.NewClient(cfg.MQTT)
	if err != nil {
		logger.Error("failed to create MQTT client: %v", err)
		return 1
	}
	if err := client.Connect(); err != nil {
		logger.Error("failed to connect to MQTT broker: %v", err)
		return 1
	}
	defer client.Disconnect()

	coordinator := publish.NewCoordinator(
		client,
		sensor.Normalizer{IncludeUnits: cfg.Topics.IncludeUnits},
		publish.Namespaces{Default: cfg.Topics.Namespace, GPU: cfg.Topics.GPUNamespace},
		a.transforms,
	)

	result, err := coordinator.Run(readings)
	if err != nil {
		logger.Error("publish cycle failed: %v", err)
		return 1
	}

	logger.Info("cycle complete: %d published, %d failed, %d dropped",
		result.Published, result.Failed, result.Dropped)
	return 0
}

// runLoop repeats cycles on a ticker until SIGINT or SIGTERM. The config
// file is watched so transforms and logging pick up edits without a
// restart; broker settings apply from the next cycle.
func (a *app) runLoop(configPath string, interval time.Duration) int {
	logger.Info("running every %s", interval)

	if err := config.WatchConfig(configPath, func(newCfg *config.Config) error {
		a.mu.Lock()
		a.cfg = newCfg
		a.mu.Unlock()

		for kind, tc := range newCfg.Transforms {
			if err := a.transforms.Reload(kind, tc); err != nil {
				logger.Error("failed to reload transform for %s: %v", kind, err)
			}
		}

		if level, err := logger.ParseLogLevel(newCfg.Logger.Level); err == nil {
			logger.SetLevel(level)
		}
		return nil
	}); err != nil {
		logger.Warn("config watch disabled: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.runCycle()
	for {
		select {
		case <-ticker.C:
			a.runCycle()
		case sig := <-sigChan:
			logger.Info("received %s, stopping", sig)
			return 0
		}
	}
}

// collectReadings polls every source, degrading each failure to an empty
// contribution. Source errors never abort the run; the run only fails
// later if nobody contributed anything.
func collectReadings(ctx context.Context, sources []source.Source) []source.DeviceReading {
	var readings []source.DeviceReading

	for _, s := range sources {
		polled, err := s.Poll(ctx)
		if err != nil {
			switch {
			case errors.Is(err, source.ErrUnavailable):
				logger.Warn("%s not found, skipping", s.Name())
			case errors.Is(err, source.ErrTimeout):
				logger.Error("%s timed out, skipping", s.Name())
			default:
				logger.Error("%s failed: %v", s.Name(), err)
			}
			continue
		}
		readings = append(readings, polled...)
	}

	return readings
}
