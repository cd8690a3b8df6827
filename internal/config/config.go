package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
	"github.com/bryanwahyu/ddq-validator/internal/domain/validation"
)

// Reference sources
const (
	ReferenceNone     = "none"
	ReferenceWorkbook = "workbook"
	ReferenceMinio    = "minio"
	ReferenceMySQL    = "mysql"
	ReferencePostgres = "postgres"
	ReferenceSqlite   = "sqlite"
)

type Columns struct {
	QuestionID string `yaml:"question_id"`
	Question   string `yaml:"question"`
	Answer     string `yaml:"answer"`
	Expected   string `yaml:"expected"`
}

type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		MaxUploadMB    int      `yaml:"max_upload_mb"`
		RateLimit      struct {
			Capacity   int `yaml:"capacity"`
			RefillRate int `yaml:"refill_rate"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`

	Extraction struct {
		Columns         Columns  `yaml:"columns"`
		MaxRowsPerSheet int      `yaml:"max_rows_per_sheet"`
		Sheets          []string `yaml:"sheets"`
		StartRow        int      `yaml:"start_row"`
		RedactNames     bool     `yaml:"redact_names"`
	} `yaml:"extraction"`

	Rules validation.RuleOptions `yaml:"rules"`

	Assessor struct {
		Enabled           bool          `yaml:"enabled"`
		Model             string        `yaml:"model"`
		APIKey            string        `yaml:"api_key"`
		BaseURL           string        `yaml:"base_url"`
		MaxConcurrency    int           `yaml:"max_concurrency"`
		Timeout           time.Duration `yaml:"timeout"`
		MaxEscalations    int           `yaml:"max_escalations"`
		RequestsPerMinute int           `yaml:"requests_per_minute"`
		// ExcludeKinds are finding kinds kept from the assessor, unless the model answer forbids the answer.
		ExcludeKinds []string `yaml:"exclude_kinds"`
	} `yaml:"assessor"`

	Reference struct {
		Source        string `yaml:"source"`
		Path          string `yaml:"path"`
		ObjectKey     string `yaml:"object_key"`
		Questionnaire string `yaml:"questionnaire"`
		Strict        bool   `yaml:"strict"`
	} `yaml:"reference"`

	Database struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"database"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Defaults cukup untuk run tanpa file config
func Defaults() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.MaxUploadMB = 20
	c.Server.RateLimit.Capacity = 10
	c.Server.RateLimit.RefillRate = 1

	c.Extraction.Columns = Columns{QuestionID: "A", Question: "B", Answer: "C", Expected: "D"}
	c.Extraction.StartRow = 1
	c.Extraction.RedactNames = true

	c.Rules = validation.DefaultRuleOptions()

	c.Assessor.Enabled = true
	c.Assessor.Model = "gpt-5.2"
	c.Assessor.MaxConcurrency = 4
	c.Assessor.Timeout = 30 * time.Second
	c.Assessor.MaxEscalations = 30
	c.Assessor.ExcludeKinds = []string{string(ddq.KindCrossReference)}

	c.Reference.Source = ReferenceNone

	c.Database.Port = 3306
	c.Database.SSLMode = "disable"

	c.Log.Level = "info"
	return &c
}

// Load baca file config.yaml di atas Defaults, lalu env override.
// Empty path means defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Assessor.APIKey = v
	}
	if v := os.Getenv("DDQ_LLM_MODEL"); v != "" {
		c.Assessor.Model = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, o)
			}
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = p
	}
	return nil
}

// Validate checks the settings that cannot be defaulted away.
func (c *Config) Validate() error {
	var errs []error
	cols := c.Extraction.Columns
	if cols.Question == "" || cols.Answer == "" || cols.Expected == "" {
		errs = append(errs, errors.New("extraction.columns: question, answer and expected are required"))
	}
	if c.Extraction.MaxRowsPerSheet < 0 {
		errs = append(errs, errors.New("extraction.max_rows_per_sheet must not be negative"))
	}
	if c.Assessor.MaxEscalations < 0 {
		errs = append(errs, errors.New("assessor.max_escalations must not be negative"))
	}
	for _, k := range c.Assessor.ExcludeKinds {
		if ddq.FindingKind(k).Priority() > ddq.KindCrossReference.Priority() {
			errs = append(errs, fmt.Errorf("assessor.exclude_kinds: %q is not a finding kind", k))
		}
	}
	switch c.Reference.Source {
	case "", ReferenceNone:
	case ReferenceWorkbook:
		if c.Reference.Path == "" {
			errs = append(errs, errors.New("reference.path is required for workbook"))
		}
	case ReferenceSqlite:
		if c.Reference.Path == "" || c.Reference.Questionnaire == "" {
			errs = append(errs, errors.New("reference.path and reference.questionnaire are required for sqlite"))
		}
	case ReferenceMinio:
		if c.Reference.ObjectKey == "" {
			errs = append(errs, errors.New("reference.object_key is required for minio"))
		}
	case ReferenceMySQL, ReferencePostgres:
		if c.Reference.Questionnaire == "" {
			errs = append(errs, errors.New("reference.questionnaire is required for database sources"))
		}
	default:
		errs = append(errs, fmt.Errorf("reference.source %q is not supported", c.Reference.Source))
	}
	if _, err := c.Rules.Compile(); err != nil {
		errs = append(errs, fmt.Errorf("rules: %w", err))
	}
	return errors.Join(errs...)
}

// GateKinds converts ExcludeKinds for validation.GateConfig.
func (c *Config) GateKinds() []ddq.FindingKind {
	out := make([]ddq.FindingKind, 0, len(c.Assessor.ExcludeKinds))
	for _, k := range c.Assessor.ExcludeKinds {
		out = append(out, ddq.FindingKind(k))
	}
	return out
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN dalam format URL untuk lib/pq
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
