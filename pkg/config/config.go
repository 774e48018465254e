package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	appConfig     *AppConfig
	dbTablePrefix = "pnm_"
)

type AppConfig struct {
	RDS       *redis.Client
	DB        *gorm.DB
	Logger    *logrus.Logger
	NatsConn  *nats.Conn
	JetStream jetstream.JetStream

	RootWorkingDir  string
	Client          ClientInfo      `yaml:"client"`
	LogSettings     LogSettings     `yaml:"log_settings"`
	RedisInfo       RedisInfo       `yaml:"redis_info"`
	DatabaseInfo    DatabaseInfo    `yaml:"database_info"`
	NatsInfo        NatsInfo        `yaml:"nats_info"`
	Speech          SpeechConfig    `yaml:"speech"`
	SessionSettings SessionSettings `yaml:"session_settings"`
}

type ClientInfo struct {
	Port           int            `yaml:"port"`
	Debug          bool           `yaml:"debug"`
	ApiKey         string         `yaml:"api_key"`
	Secret         string         `yaml:"secret"`
	TokenValidity  *time.Duration `yaml:"token_validity"`
	PrometheusConf PrometheusConf `yaml:"prometheus"`
	ProxyHeader    string         `yaml:"proxy_header"`
}

type PrometheusConf struct {
	Enable      bool   `yaml:"enable"`
	MetricsPath string `yaml:"metrics_path"`
}

type LogSettings struct {
	LogFile    string  `yaml:"log_file"`
	MaxSize    int     `yaml:"maxsize"`
	MaxBackups int     `yaml:"maxbackups"`
	MaxAge     int     `yaml:"maxage"`
	LogLevel   *string `yaml:"log_level"`
	// Format is "text" (default) or "json".
	Format string `yaml:"format"`
}

// SpeechConfig selects the speech backend and how it reaches the bot.
type SpeechConfig struct {
	// Provider is "azure" or "loopback".
	Provider         string                 `yaml:"provider"`
	Credentials      CredentialsConfig      `yaml:"credentials"`
	DirectLineSpeech DirectLineSpeechConfig `yaml:"direct_line_speech"`
	Loopback         LoopbackConfig         `yaml:"loopback"`
}

type CredentialsConfig struct {
	APIKey string `yaml:"api_key"`
	Region string `yaml:"region"`
}

type DirectLineSpeechConfig struct {
	Language string `yaml:"language"`
	Voice    string `yaml:"voice"`
	// UseToken connects with a short-lived authorization token instead of
	// the subscription key.
	UseToken        bool          `yaml:"use_token"`
	TrailingSilence time.Duration `yaml:"trailing_silence"`
}

// TrailingSilenceBytes is the PCM length of TrailingSilence.
func (c *DirectLineSpeechConfig) TrailingSilenceBytes() int {
	// 16kHz, 2 bytes per sample
	samples := int(c.TrailingSilence.Seconds() * 16000)
	return samples * 2
}

type LoopbackConfig struct {
	Lexicon    map[string]string `yaml:"lexicon"`
	ReplyDelay time.Duration     `yaml:"reply_delay"`
}

type SessionSettings struct {
	MaxSessions        int           `yaml:"max_sessions"`
	ConnectTimeout     time.Duration `yaml:"connect_timeout"`
	RecognitionWorkers int           `yaml:"recognition_workers"`
	TranscriptTTL      time.Duration `yaml:"transcript_ttl"`
	// PurgeOnEnd deletes transcripts and relayed activities when a session
	// ends. The summary row is kept.
	PurgeOnEnd bool `yaml:"purge_on_end"`
}

type DatabaseInfo struct {
	DriverName      string          `yaml:"driver_name"`
	Host            string          `yaml:"host"`
	Port            int32           `yaml:"port"`
	Username        string          `yaml:"username"`
	Password        string          `yaml:"password"`
	DBName          string          `yaml:"db"`
	Prefix          string          `yaml:"prefix"`
	Charset         *string         `yaml:"charset"`
	Loc             *string         `yaml:"loc"`
	ConnMaxLifetime *time.Duration  `yaml:"conn_max_lifetime"`
	MaxOpenConns    *int            `yaml:"max_open_conns"`
	Replicas        []ReplicaDBInfo `yaml:"replicas"`
}

// ReplicaDBInfo holds connection details for a read replica database.
type ReplicaDBInfo struct {
	Host     string `yaml:"host"`
	Port     int32  `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type RedisInfo struct {
	Host              string   `yaml:"host"`
	Username          string   `yaml:"username"`
	Password          string   `yaml:"password"`
	DBName            int      `yaml:"db"`
	UseTLS            bool     `yaml:"use_tls"`
	MasterName        string   `yaml:"sentinel_master_name"`
	SentinelUsername  string   `yaml:"sentinel_username"`
	SentinelPassword  string   `yaml:"sentinel_password"`
	SentinelAddresses []string `yaml:"sentinel_addresses"`
}

type NatsInfo struct {
	NatsUrls    []string     `yaml:"nats_urls"`
	User        string       `yaml:"user"`
	Password    string       `yaml:"password"`
	Nkey        *string      `yaml:"nkey"`
	NumReplicas int          `yaml:"num_replicas"`
	Subjects    NatsSubjects `yaml:"subjects"`
}

type NatsSubjects struct {
	// Activity is the prefix inbound activities are relayed under,
	// as <prefix>.<sessionId>.activity
	Activity string `yaml:"activity"`
}

// New applies defaults, validates and stores appCnf for global usage.
func New(appCnf *AppConfig) (*AppConfig, error) {
	// default validation of token is 10 minutes
	if appCnf.Client.TokenValidity == nil || *appCnf.Client.TokenValidity <= 0 {
		validity := time.Minute * 10
		appCnf.Client.TokenValidity = &validity
	}
	if appCnf.Client.PrometheusConf.MetricsPath == "" {
		appCnf.Client.PrometheusConf.MetricsPath = "/metrics"
	}

	if appCnf.Speech.Provider == "" {
		appCnf.Speech.Provider = SpeechProviderAzure
	}
	switch appCnf.Speech.Provider {
	case SpeechProviderAzure:
		c := appCnf.Speech.Credentials
		if c.APIKey == "" || c.Region == "" {
			return nil, errors.New("speech.credentials api_key and region are required for azure")
		}
	case SpeechProviderLoopback:
	default:
		return nil, fmt.Errorf("unknown speech provider: %s", appCnf.Speech.Provider)
	}

	if appCnf.Speech.DirectLineSpeech.Language == "" {
		appCnf.Speech.DirectLineSpeech.Language = DefaultSpeechLanguage
	}
	if appCnf.Speech.DirectLineSpeech.TrailingSilence <= 0 {
		appCnf.Speech.DirectLineSpeech.TrailingSilence = DefaultTrailingSilence
	}

	s := &appCnf.SessionSettings
	if s.MaxSessions <= 0 {
		s.MaxSessions = DefaultMaxSessions
	}
	if s.ConnectTimeout <= 0 {
		s.ConnectTimeout = DefaultConnectTimeout
	}
	if s.RecognitionWorkers <= 0 {
		s.RecognitionWorkers = DefaultRecognitionWorkers
	}
	if s.TranscriptTTL <= 0 {
		s.TranscriptTTL = DefaultTranscriptTTL
	}

	if appCnf.NatsInfo.Subjects.Activity == "" {
		appCnf.NatsInfo.Subjects.Activity = DefaultActivitySubject
	}

	if appCnf.DatabaseInfo.Prefix != "" {
		dbTablePrefix = appCnf.DatabaseInfo.Prefix
	}

	appConfig = appCnf
	return appCnf, nil
}

func GetConfig() *AppConfig {
	return appConfig
}

func GetLogger() *logrus.Logger {
	if appConfig == nil || appConfig.Logger == nil {
		return logrus.StandardLogger()
	}
	return appConfig.Logger
}

func FormatDBTable(table string) string {
	return dbTablePrefix + table
}
