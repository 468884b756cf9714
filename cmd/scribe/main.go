// Command scribe runs the chunked transcription pipeline as an HTTP service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/skillsenselab/scribe/audio"
	"github.com/skillsenselab/scribe/config"
	"github.com/skillsenselab/scribe/job"
	"github.com/skillsenselab/scribe/logger"
	"github.com/skillsenselab/scribe/observability"
	"github.com/skillsenselab/scribe/pipeline"
	"github.com/skillsenselab/scribe/redis"
	"github.com/skillsenselab/scribe/server"
	"github.com/skillsenselab/scribe/storage"
	"github.com/skillsenselab/scribe/transcription/whisper"
	"github.com/skillsenselab/scribe/usage"

	// Register the storage backends.
	_ "github.com/skillsenselab/scribe/storage/local"
	_ "github.com/skillsenselab/scribe/storage/s3"
)

const serviceName = "scribe"

func main() {
	if err := run(); err != nil {
		logger.Error("service exited", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	var cfg config.Config
	if err := config.Load(serviceName, &cfg); err != nil {
		return err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	log := logger.GetGlobalLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := storage.New(storage.Config{
		Provider:  cfg.Storage.Provider,
		BasePath:  cfg.Storage.BasePath,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
	}, log)
	if err != nil {
		return err
	}

	var cache redis.TranscriptCache = redis.NoopCache{}
	if cfg.Redis.Enabled {
		client, err := redis.New(redis.Config{
			Enabled:  true,
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log)
		if err != nil {
			return err
		}
		defer client.Close()
		cache = redis.NewCache(client, cfg.Redis.TTL)
	}

	var tracker usage.Tracker = usage.Noop{}
	if cfg.Usage.Enabled {
		kt := usage.NewKafkaTracker(cfg.Usage.Brokers, cfg.Usage.Topic, log)
		defer kt.Close()
		tracker = kt
	}

	var metrics *observability.PipelineMetrics
	if cfg.Metrics.Enabled {
		mc := observability.DefaultMeterConfig(serviceName)
		mc.Endpoint = cfg.Metrics.Endpoint
		mc.Environment = cfg.Metrics.Environment
		if cfg.Metrics.Interval > 0 {
			mc.Interval = cfg.Metrics.Interval
		}
		mp, err := observability.InitMeter(ctx, &mc)
		if err != nil {
			return err
		}
		defer mp.Shutdown(context.Background())
		metrics, err = observability.NewPipelineMetrics(observability.Meter("pipeline"))
		if err != nil {
			return err
		}
	}

	prov := whisper.NewProvider(whisper.Config{
		URL:      cfg.Whisper.URL,
		Model:    cfg.Whisper.Model,
		Language: cfg.Whisper.Language,
		APIKey:   cfg.Whisper.APIKey,
		Timeout:  cfg.Whisper.Timeout,
	})

	svc, err := pipeline.New(pipeline.Params{
		Config:   cfg.Pipeline,
		Store:    job.NewStore(log),
		Chunker:  audio.NewChunker(storage.NewByteClient(st), log),
		Provider: prov,
		Cache:    cache,
		Tracker:  tracker,
		Metrics:  metrics,
		Logger:   log,
	})
	if err != nil {
		return err
	}
	svc.Start(ctx)

	srv := server.New(server.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}, log)
	server.NewJobHandler(svc, prov).Register(srv.Engine())
	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	return srv.Stop(context.Background())
}
