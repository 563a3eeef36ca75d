package app

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"time"

	"github.com/ademnea/beehive-pipeline/internal/config"
	"github.com/ademnea/beehive-pipeline/internal/detection"
	"github.com/ademnea/beehive-pipeline/internal/detection/repository"
	"github.com/ademnea/beehive-pipeline/internal/detection/usecase"
	"github.com/ademnea/beehive-pipeline/internal/worker"
	"github.com/ademnea/beehive-pipeline/pkg/db/aws"
	"github.com/ademnea/beehive-pipeline/pkg/db/redis"
	"github.com/ademnea/beehive-pipeline/pkg/logger"
	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Dependencies are the collaborators of one detection run.
type Dependencies struct {
	Remote  detection.RemoteRepository
	Tracker detection.Tracker
	Results detection.ResultRepository
	State   detection.StateRepository
	Mirrors []detection.ResultMirror
	closers []func() error
}

func (d *Dependencies) Close() {
	for _, c := range d.closers {
		_ = c()
	}
}

// Factory builds the dependencies once the configuration is known to be valid.
type Factory func(ctx context.Context, cfg *config.Config, log logger.Logger) (*Dependencies, error)

type Options struct {
	Viper   *viper.Viper
	Stdin   io.Reader
	Logger  logger.Logger
	Factory Factory
	Now     func() time.Time
}

// Run executes one invocation and returns the process exit status.
func Run(ctx context.Context, opts Options) int {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	v := opts.Viper
	var cfg *config.Config
	var err error
	if v == nil {
		v, err = config.LoadConfig("")
	}
	if err == nil {
		cfg, err = config.ParseConfig(v)
	}
	log := opts.Logger
	if log == nil {
		bootstrap := cfg
		if bootstrap == nil {
			bootstrap = &config.Config{}
		}
		apiLogger := logger.NewApiLogger(bootstrap)
		apiLogger.InitLogger()
		log = apiLogger
	}
	defer log.Sync()

	if err != nil {
		log.Errorf("Configuration error: %v", detection.Wrap(detection.ErrConfiguration, err, "parse config"))
		return detection.ExitFatal
	}
	if err := cfg.ValidateDetection(ctx); err != nil {
		log.Errorf("Configuration error: %v", err)
		return detection.ExitFatal
	}

	if err := run(ctx, cfg, opts, log, now); err != nil {
		var fatal *detection.FatalError
		if errors.As(err, &fatal) {
			if fatal.Code != detection.ExitOK {
				log.Errorf("Fatal: %v", fatal.Err)
			}
			return fatal.Code
		}
		log.Errorf("Fatal: %v", err)
		return detection.ExitFatal
	}
	return detection.ExitOK
}

func run(ctx context.Context, cfg *config.Config, opts Options, log logger.Logger, now func() time.Time) error {
	factory := opts.Factory
	if factory == nil {
		factory = NewDependencies
	}
	deps, err := factory(ctx, cfg, log)
	if err != nil {
		return detection.Fatal(detection.ExitFatal, err)
	}
	defer deps.Close()

	if err := deps.State.Init(ctx); err != nil {
		return detection.Fatal(detection.ExitFatal, err)
	}
	if last, err := deps.State.LastRun(ctx); err == nil && !last.IsZero() {
		log.Infof("Previous run finished at %s", last.Format(time.RFC3339))
	}

	input, err := detection.ParsePayload(opts.Stdin)
	if err != nil {
		if errors.Is(err, detection.ErrMissingInput) {
			return detection.Fatal(detection.ExitFatal, err)
		}
		log.Errorf("Invalid JSON input: %v", err)
		log.Infof("Usage: %s", detection.UsageHint)
		return detection.Fatal(detection.ExitOK, err)
	}
	if input.Timestamp != "" {
		log.Infof("Payload timestamp: %s", input.Timestamp)
	}
	if len(input.Videos) == 0 {
		log.Warn("No videos to process")
		return nil
	}

	runID := uuid.NewString()
	lock, err := repository.AcquireRunLock(ctx, filepath.Dir(cfg.Paths.ProcessedLog), runID)
	if err != nil {
		return detection.Fatal(detection.ExitFatal, err)
	}
	if lock.Recovered != nil {
		log.Warnf("Reclaimed run lock left by %s", lock.Recovered)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warnf("failed to release run lock: %v", err)
		}
	}()

	log.Infof("Run %s: %d videos", runID, len(input.Videos))
	uc := usecase.NewDetectionUseCase(cfg, deps.Remote, deps.Tracker, deps.Results, deps.State, deps.Mirrors, log)
	uc.ProcessBatch(ctx, input.Videos)

	if err := deps.State.UpdateLastRun(ctx, now()); err != nil {
		return detection.Fatal(detection.ExitFatal, err)
	}
	return nil
}

// NewDependencies wires the production stack. Mirrors that cannot connect are skipped.
func NewDependencies(ctx context.Context, cfg *config.Config, log logger.Logger) (*Dependencies, error) {
	tracker, err := worker.NewProcessTracker(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{
		Remote:  repository.NewSSHRepository(cfg, log),
		Tracker: tracker,
		Results: repository.NewCSVRepository(cfg.Paths.LocalOutputDir),
		State:   repository.NewStateRepository(cfg.Paths.ProcessedLog, cfg.Paths.LastRunFile),
	}

	if cfg.RedisEnabled() {
		client, err := redis.NewRedisClient(ctx, cfg)
		if err != nil {
			log.Warnf("Redis mirror disabled: %v", err)
		} else {
			deps.Mirrors = append(deps.Mirrors, repository.NewResultRedisRepo(client, cfg.Redis.Channel))
			deps.closers = append(deps.closers, client.Close)
		}
	}
	if cfg.S3Enabled() {
		client, err := aws.NewAWSClient(ctx, cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.AccessKey, cfg.S3.SecretKey)
		if err != nil {
			log.Warnf("S3 mirror disabled: %v", err)
		} else {
			deps.Mirrors = append(deps.Mirrors, repository.NewAwsRepository(client, cfg.S3.Bucket, cfg.S3.Prefix))
		}
	}
	return deps, nil
}
