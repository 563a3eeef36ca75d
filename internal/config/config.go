package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ademnea/beehive-pipeline/pkg/utils"
	"github.com/spf13/viper"
)

type Config struct {
	Remote    RemoteConfig    `mapstructure:"remote"`
	Paths     PathsConfig     `mapstructure:"paths"`
	Inference InferenceConfig `mapstructure:"inference"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Logger    Logger          `mapstructure:"logger"`
	Redis     RedisConfig     `mapstructure:"redis"`
	S3        S3Config        `mapstructure:"s3"`
	Postgres  DBConfig        `mapstructure:"postgres"`
}

type RemoteConfig struct {
	Host            string        `mapstructure:"host" env:"REMOTE_HOST" validate:"required"`
	Port            int           `mapstructure:"port" env:"REMOTE_PORT" validate:"gt=0,lte=65535"`
	User            string        `mapstructure:"user" env:"REMOTE_USER" validate:"required"`
	Password        string        `mapstructure:"password" env:"REMOTE_PASS"`
	KeyPath         string        `mapstructure:"keypath" env:"SSH_KEY_PATH"`
	KnownHosts      string        `mapstructure:"knownhosts" env:"SSH_KNOWN_HOSTS"`
	VideoPath       string        `mapstructure:"videopath" env:"REMOTE_VIDEO_PATH" validate:"required"`
	OutputPath      string        `mapstructure:"outputpath" env:"REMOTE_OUTPUT_PATH" validate:"required"`
	ResultPerVideo  bool          `mapstructure:"resultpervideo" env:"REMOTE_RESULT_PER_VIDEO"`
	ConnectTimeout  time.Duration `mapstructure:"connecttimeout" env:"CONNECT_TIMEOUT"`
	CommandTimeout  time.Duration `mapstructure:"commandtimeout" env:"TRANSPORT_COMMAND_TIMEOUT"`
	TransferTimeout time.Duration `mapstructure:"transfertimeout" env:"TRANSPORT_TRANSFER_TIMEOUT"`
}

type PathsConfig struct {
	LocalVideoDir  string `mapstructure:"localvideodir" env:"LOCAL_VIDEO_DIR" validate:"required"`
	LocalOutputDir string `mapstructure:"localoutputdir" env:"LOCAL_OUTPUT_DIR" validate:"required"`
	TempDir        string `mapstructure:"tempdir" env:"TEMP_DIR"`
	ProcessedLog   string `mapstructure:"processedlog" env:"PROCESSED_LOG" validate:"required"`
	LastRunFile    string `mapstructure:"lastrunfile" env:"LAST_RUN_FILE" validate:"required"`
}

type InferenceConfig struct {
	ModelPath string `mapstructure:"modelpath" env:"MODEL_PATH" validate:"required"`
	Command   string `mapstructure:"command" env:"TRACKER_COMMAND" validate:"required"`
}

type WorkerConfig struct {
	MaxCPUUsage   float64       `mapstructure:"maxcpuusage" env:"WORKER_MAX_CPU_USAGE"`
	CheckInterval time.Duration `mapstructure:"checkinterval" env:"WORKER_CPU_CHECK_INTERVAL"`
}

type Logger struct {
	Development       bool   `mapstructure:"development"`
	DisableCaller     bool   `mapstructure:"disablecaller"`
	DisableStacktrace bool   `mapstructure:"disablestacktrace"`
	Encoding          string `mapstructure:"encoding"`
	Level             string `mapstructure:"level"`
}

type RedisConfig struct {
	RedisAddr     string `mapstructure:"redisaddr"`
	RedisPassword string `mapstructure:"redispassword"`
	DB            int    `mapstructure:"db"`
	PoolSize      int    `mapstructure:"poolsize"`
	PoolTimeout   int    `mapstructure:"pooltimeout"`
	Channel       string `mapstructure:"channel"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"accesskey"`
	SecretKey string `mapstructure:"secretkey"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
}

type DBConfig struct {
	Host     string `mapstructure:"host" env:"POSTGRES_HOST" validate:"required"`
	Port     int    `mapstructure:"port" env:"POSTGRES_PORT" validate:"gt=0"`
	User     string `mapstructure:"user" env:"POSTGRES_USER" validate:"required"`
	Password string `mapstructure:"password" env:"POSTGRES_PASSWORD"`
	Name     string `mapstructure:"name" env:"POSTGRES_DBNAME" validate:"required"`
	SSLMode  string `mapstructure:"sslmode" env:"POSTGRES_SSLMODE"`
	PgDriver string `mapstructure:"pgdriver"`
}

// envBindings maps viper keys to the environment variables operators set.
var envBindings = map[string]string{
	"remote.host":            "REMOTE_HOST",
	"remote.port":            "REMOTE_PORT",
	"remote.user":            "REMOTE_USER",
	"remote.password":        "REMOTE_PASS",
	"remote.keypath":         "SSH_KEY_PATH",
	"remote.knownhosts":      "SSH_KNOWN_HOSTS",
	"remote.videopath":       "REMOTE_VIDEO_PATH",
	"remote.outputpath":      "REMOTE_OUTPUT_PATH",
	"remote.resultpervideo":  "REMOTE_RESULT_PER_VIDEO",
	"remote.connecttimeout":  "CONNECT_TIMEOUT",
	"remote.commandtimeout":  "TRANSPORT_COMMAND_TIMEOUT",
	"remote.transfertimeout": "TRANSPORT_TRANSFER_TIMEOUT",

	"paths.localvideodir":  "LOCAL_VIDEO_DIR",
	"paths.localoutputdir": "LOCAL_OUTPUT_DIR",
	"paths.tempdir":        "TEMP_DIR",
	"paths.processedlog":   "PROCESSED_LOG",
	"paths.lastrunfile":    "LAST_RUN_FILE",

	"inference.modelpath": "MODEL_PATH",
	"inference.command":   "TRACKER_COMMAND",

	"worker.maxcpuusage":   "WORKER_MAX_CPU_USAGE",
	"worker.checkinterval": "WORKER_CPU_CHECK_INTERVAL",

	"logger.development":       "LOG_DEVELOPMENT",
	"logger.disablecaller":     "LOG_DISABLE_CALLER",
	"logger.disablestacktrace": "LOG_DISABLE_STACKTRACE",
	"logger.encoding":          "LOG_ENCODING",
	"logger.level":             "LOG_LEVEL",

	"redis.redisaddr":     "REDIS_ADDR",
	"redis.redispassword": "REDIS_PASSWORD",
	"redis.db":            "REDIS_DB",
	"redis.poolsize":      "REDIS_POOL_SIZE",
	"redis.pooltimeout":   "REDIS_POOL_TIMEOUT",
	"redis.channel":       "REDIS_CHANNEL",

	"s3.endpoint":  "S3_ENDPOINT",
	"s3.region":    "S3_REGION",
	"s3.accesskey": "S3_ACCESS_KEY",
	"s3.secretkey": "S3_SECRET_KEY",
	"s3.bucket":    "S3_BUCKET",
	"s3.prefix":    "S3_PREFIX",

	"postgres.host":     "POSTGRES_HOST",
	"postgres.port":     "POSTGRES_PORT",
	"postgres.user":     "POSTGRES_USER",
	"postgres.password": "POSTGRES_PASSWORD",
	"postgres.name":     "POSTGRES_DBNAME",
	"postgres.sslmode":  "POSTGRES_SSLMODE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("remote.port", 22)
	v.SetDefault("remote.connecttimeout", 10*time.Second)
	v.SetDefault("remote.commandtimeout", 2*time.Minute)
	v.SetDefault("remote.transfertimeout", 30*time.Minute)

	v.SetDefault("paths.localvideodir", "/tmp/videos")
	v.SetDefault("paths.localoutputdir", "/tmp/output")
	v.SetDefault("paths.tempdir", os.TempDir())
	v.SetDefault("paths.processedlog", "/app/processed.log")
	v.SetDefault("paths.lastrunfile", "/app/last_run.txt")

	v.SetDefault("inference.modelpath", "/app/best.pt")
	v.SetDefault("inference.command", "python3 /app/track.py")

	v.SetDefault("worker.maxcpuusage", 0)
	v.SetDefault("worker.checkinterval", 10*time.Second)

	v.SetDefault("logger.encoding", "json")
	v.SetDefault("logger.level", "info")

	v.SetDefault("redis.poolsize", 4)
	v.SetDefault("redis.pooltimeout", 5)
	v.SetDefault("redis.channel", "bee_detection_results")

	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.prefix", "bee-detection")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.pgdriver", "pgx")
}

// LoadConfig builds a viper instance backed by the environment. filename is optional;
// when set, the file is read first and environment variables override it.
func LoadConfig(filename string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	v.AutomaticEnv()
	if filename == "" {
		return v, nil
	}
	v.SetConfigFile(filename)
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFound) || os.IsNotExist(err) {
			return nil, errors.New("config file not found")
		}
		return nil, err
	}
	return v, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	c.Remote.VideoPath = trimRemoteDir(c.Remote.VideoPath)
	c.Remote.OutputPath = trimRemoteDir(c.Remote.OutputPath)
	if c.Paths.TempDir == "" {
		c.Paths.TempDir = os.TempDir()
	}
	c.Paths.TempDir = filepath.Clean(c.Paths.TempDir)
	return &c, nil
}

// trimRemoteDir drops trailing slashes but keeps the remote root as "/".
func trimRemoteDir(dir string) string {
	trimmed := strings.TrimRight(dir, "/")
	if trimmed == "" && dir != "" {
		return "/"
	}
	return trimmed
}

// ValidateDetection checks everything the bee detection job needs before it touches
// the network or the model.
func (c *Config) ValidateDetection(ctx context.Context) error {
	for _, section := range []interface{}{&c.Remote, &c.Paths, &c.Inference} {
		if err := utils.ValidateStruct(ctx, section); err != nil {
			if fields := utils.MissingFields(err); len(fields) > 0 {
				return fmt.Errorf("invalid or missing environment variables: %s", strings.Join(fields, ", "))
			}
			return err
		}
	}
	return nil
}

func (c *Config) ValidateExport(ctx context.Context) error {
	if err := utils.ValidateStruct(ctx, &c.Postgres); err != nil {
		if fields := utils.MissingFields(err); len(fields) > 0 {
			return fmt.Errorf("invalid or missing environment variables: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

func (c *Config) RedisEnabled() bool {
	return c.Redis.RedisAddr != ""
}

func (c *Config) S3Enabled() bool {
	return c.S3.Bucket != ""
}
