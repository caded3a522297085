package main

import (
	"time"

	"github.com/CodeFleck/sensorvision-sub002/internal/model"
)

const (
	defaultBindHost            = "127.0.0.1"
	defaultTCPPort             = 5050
	defaultOTLPPort            = 4317
	defaultAPIPort             = 8080
	defaultMuxBufferSize       = DefaultMuxBuffer
	defaultQueryTimeout        = 30 * time.Second
	defaultInsertBatchSize     = 2000
	defaultInsertFlushInterval = 100 * time.Millisecond
	defaultInsertFlushQueue    = 64
	defaultDebounceWindow      = model.DefaultDebounceWindow
	defaultRetentionInterval   = time.Hour
	defaultTokenTTL            = 24 * time.Hour
	defaultBackupInterval      = 6 * time.Hour
	defaultBackupKeepLast      = 5
	defaultAdminUsername       = "admin"
	defaultAdminPassword       = "admin"
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the daemon entrypoint.
type appConfig struct {
	Host                 string        `mapstructure:"host"`
	DBPath               string        `mapstructure:"db-path"`
	QueryTimeout         time.Duration `mapstructure:"query-timeout"`
	TCPEnabled           bool          `mapstructure:"tcp-enabled"`
	TCPPort              int           `mapstructure:"tcp-port"`
	TCPAddr              string        `mapstructure:"tcp-addr"`
	OTLPEnabled          bool          `mapstructure:"otlp-enabled"`
	OTLPPort             int           `mapstructure:"otlp-port"`
	OTLPAddr             string        `mapstructure:"otlp-addr"`
	APIEnabled           bool          `mapstructure:"api-enabled"`
	APIPort              int           `mapstructure:"api-port"`
	APIAddr              string        `mapstructure:"api-addr"`
	MuxBufferSize        int           `mapstructure:"mux-buffer-size"`
	InsertBatchSize      int           `mapstructure:"insert-batch-size"`
	InsertFlushInterval  time.Duration `mapstructure:"insert-flush-interval"`
	InsertFlushQueue     int           `mapstructure:"insert-flush-queue-size"`
	JournalEnabled       bool          `mapstructure:"journal-enabled"`
	JournalPath          string        `mapstructure:"journal-path"`
	DebounceWindow       time.Duration `mapstructure:"debounce-window"`
	DebounceFlushOnStop  bool          `mapstructure:"debounce-flush-on-stop"`
	RetentionInterval    time.Duration `mapstructure:"retention-interval"`
	JWTSecret            string        `mapstructure:"jwt-secret"`
	TokenTTL             time.Duration `mapstructure:"token-ttl"`
	AdminUsername        string        `mapstructure:"admin-username"`
	AdminPassword        string        `mapstructure:"admin-password"`
	SocketPath           string        `mapstructure:"socket-path"`
	BackupEnabled        bool          `mapstructure:"backup-enabled"`
	BackupInterval       time.Duration `mapstructure:"backup-interval"`
	BackupLocalDir       string        `mapstructure:"backup-local-dir"`
	BackupKeepLast       int           `mapstructure:"backup-keep-last"`
	BackupBucketURL      string        `mapstructure:"backup-bucket-url"`
	BackupS3Endpoint     string        `mapstructure:"backup-s3-endpoint"`
	BackupS3Region       string        `mapstructure:"backup-s3-region"`
	BackupS3AccessKey    string        `mapstructure:"backup-s3-access-key"`
	BackupS3SecretKey    string        `mapstructure:"backup-s3-secret-key"`
	BackupS3SessionToken string        `mapstructure:"backup-s3-session-token"`
	BackupS3UseSSL       bool          `mapstructure:"backup-s3-use-ssl"`
	ConfigPath           string        `mapstructure:"-"` // not from config file
}
