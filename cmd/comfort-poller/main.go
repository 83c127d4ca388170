// Command comfort-poller authenticates against the De'Longhi Comfort cloud
// and logs a property snapshot for every registered device on a fixed
// interval. It is the library's consumer of record: one credential set, one
// session, one goroutine driving all calls.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hvackit/comfort-cloud/internal/authflow"
	"github.com/hvackit/comfort-cloud/internal/devicecloud"
)

// Version is set by the build process
var Version = "dev"

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("poller exited", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg Config, logger *zap.Logger) error {
	logger.Info("starting comfort-poller",
		zap.String("version", Version),
		zap.Duration("poll_interval", cfg.pollInterval()))

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	sessionOpts := []authflow.Option{
		authflow.WithHTTPClient(httpClient),
		authflow.WithLogger(logger.Named("authflow")),
	}

	// Optional Redis-backed token persistence: a restarted poller resumes
	// with a refresh instead of a full login.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("parsing Redis URL", zap.Error(err))
			return err
		}
		redisClient = redis.NewClient(redisOpts)
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("connecting to Redis", zap.Error(err))
			return err
		}
		sessionOpts = append(sessionOpts, authflow.WithStore(authflow.NewRedisStore(redisClient)))
	}

	session := authflow.NewSession(authflow.Credentials{
		Username: cfg.Username,
		Password: cfg.Password,
		Language: cfg.Language,
	}, sessionOpts...)

	client := devicecloud.NewClient(session,
		devicecloud.WithHTTPClient(httpClient),
		devicecloud.WithLogger(logger.Named("devicecloud")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := session.Restore(ctx); err != nil {
		logger.Warn("could not restore persisted session", zap.Error(err))
	}

	devices, err := client.ListDevices(ctx)
	if err != nil {
		logger.Error("listing devices", zap.Error(err))
		return err
	}
	if len(devices) == 0 {
		// A terminal setup condition, not a retryable fault: the account
		// has nothing to poll.
		logger.Warn("no devices registered to this account")
		return nil
	}
	for _, d := range devices {
		logger.Info("found device",
			zap.String("dsn", d.DSN),
			zap.String("product_name", d.ProductName),
			zap.String("model", d.Model),
			zap.String("oem_model", d.OEMModel),
			zap.String("sw_version", d.SWVersion))
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.pollInterval())
	defer ticker.Stop()

	pollAll(ctx, logger, client, devices)
	for {
		select {
		case <-ticker.C:
			pollAll(ctx, logger, client, devices)
		case sig := <-shutdown:
			logger.Info("shutting down", zap.String("signal", sig.String()))
			return nil
		}
	}
}

func pollAll(ctx context.Context, logger *zap.Logger, client *devicecloud.Client, devices []devicecloud.Device) {
	for _, d := range devices {
		props, err := client.GetProperties(ctx, d.DSN)
		if err != nil {
			logger.Warn("polling device failed",
				zap.String("dsn", d.DSN),
				zap.Error(err))
			continue
		}
		logger.Info("device snapshot",
			zap.String("dsn", d.DSN),
			zap.Any("properties", devicecloud.Snapshot(props)))
	}
}
