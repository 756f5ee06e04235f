package config

import "time"

type Config struct {
	Server   HTTPServerConfig `json:"server"`
	LLM      LLMConfig        `json:"llm"`
	Retry    RetryConfig      `json:"retry"`
	Mongo    MongoConfig      `json:"mongo"`
	SQLite   SQLiteConfig     `json:"sqlite"`
	FileRepo FileRepoConfig   `json:"file_repo"`
	NATS     NATSConfig       `json:"nats"`
	Worker   WorkerConfig     `json:"worker"`

	StackFile   string `json:"stack_file"`
	CatalogFile string `json:"catalog_file"`
	LogLevel    string `json:"log_level"`
}

type HTTPServerConfig struct {
	Host         string        `json:"host" default:"0.0.0.0"`
	Port         int           `json:"port" default:"8080"`
	MetricsAddr  string        `json:"metrics_addr" default:":2112"`
	ReadTimeout  time.Duration `json:"read_timeout" default:"120s"`
	WriteTimeout time.Duration `json:"write_timeout" default:"120s"`
}

type LLMConfig struct {
	Provider   string        `json:"provider" default:"chat"` // chat|gemini
	APIKey     string        `json:"api_key" required:"true"`
	BaseURL    string        `json:"base_url" default:"https://kong-proxy.yc.amvera.ru/api/v1/models/gpt"`
	Model      string        `json:"model" default:"gpt-5"`
	AuthHeader string        `json:"auth_header" default:"X-Auth-Token"`
	Timeout    time.Duration `json:"timeout" default:"120s"`
}

type RetryConfig struct {
	MaxRetries int           `json:"max_retries" default:"3"`
	BaseDelay  time.Duration `json:"base_delay" default:"1s"`
}

type MongoConfig struct {
	URI      string `json:"uri" required:"true"`
	Database string `json:"database" required:"true"`
}

type SQLiteConfig struct {
	Path string `json:"path" default:"./scaffoldgen.db"`
}

type FileRepoConfig struct {
	OutputDir string `json:"output_dir" default:"./generated"`
}

type NATSConfig struct {
	URL           string `json:"url"`
	SubjectPrefix string `json:"subject_prefix" default:"scaffoldgen.progress"`
}

type WorkerConfig struct {
	PollInterval     time.Duration `json:"poll_interval" default:"5s"`
	RunTimeout       time.Duration `json:"run_timeout" default:"30m"`
	FailOnValidation bool          `json:"fail_on_validation"`
}
