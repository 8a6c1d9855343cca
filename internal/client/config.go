package client

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/micheleDibi/StyleForge-sub000/internal/util"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/client-go/util/homedir"
	"sigs.k8s.io/yaml"
)

const (
	// TestRootDirEnvKey is the environment variable key used to set the file system root when testing.
	TestRootDirEnvKey = "STYLEFORGE_TEST_ROOT_DIR"
)

// Config holds the information needed to connect to the StyleForge API server
type Config struct {
	Service Service `json:"service"`

	// TestRootDir is the root directory for test files.
	testRootDir string `json:"-"`
}

// Service contains information how to connect to the StyleForge API server.
type Service struct {
	// Server is the URL of the StyleForge API server (the part before /api/v1/...).
	Server string `json:"server" validate:"required,url"`
	// Timeout bounds every HTTP request. Zero means no client-side limit.
	Timeout util.Duration `json:"timeout,omitempty"`
}

func (c *Config) Equal(c2 *Config) bool {
	if c == c2 {
		return true
	}
	if c == nil || c2 == nil {
		return false
	}
	return c.Service.Equal(&c2.Service)
}

func (s *Service) Equal(s2 *Service) bool {
	if s == s2 {
		return true
	}
	if s == nil || s2 == nil {
		return false
	}
	return s.Server == s2.Server && s.Timeout == s2.Timeout
}

func NewDefault() *Config {
	c := &Config{}

	if value := os.Getenv(TestRootDirEnvKey); value != "" {
		c.testRootDir = filepath.Clean(value)
	}

	return c
}

// NewFromConfig returns a new jobs client from the given config.
func NewFromConfig(config *Config) (*JobsClient, error) {
	httpClient, err := NewHTTPClientFromConfig(config)
	if err != nil {
		return nil, fmt.Errorf("NewFromConfig: creating HTTP client %w", err)
	}
	return NewJobsClient(config.Service.Server, httpClient), nil
}

// NewHTTPClientFromConfig returns a new HTTP Client from the given config.
func NewHTTPClientFromConfig(config *Config) (*http.Client, error) {
	httpClient := &http.Client{
		Timeout: config.Service.Timeout.Duration,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     false,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
	return httpClient, nil
}

// DefaultClientConfigPath returns the default path to the client config file.
func DefaultClientConfigPath() string {
	return filepath.Join(homedir.HomeDir(), ".styleforge", "client.yaml")
}

func (c *Config) path(filename string) string {
	if c.testRootDir != "" {
		return filepath.Join(c.testRootDir, filename)
	}
	return filename
}

func ParseConfigFile(filename string) (*Config, error) {
	config := NewDefault()
	contents, err := os.ReadFile(config.path(filename))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(contents, config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// NewFromConfigFile returns a new jobs client using the config read from the given file.
func NewFromConfigFile(filename string) (*JobsClient, error) {
	config, err := ParseConfigFile(filename)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(config)
}

// WriteConfig validates service and writes it to filename. A file that
// already holds the same settings is left untouched; the result reports
// whether the file was written.
func WriteConfig(filename string, service Service) (bool, error) {
	config := NewDefault()
	config.Service = service
	if err := config.Validate(); err != nil {
		return false, err
	}

	if existing, err := ParseConfigFile(filename); err == nil && existing.Equal(config) {
		return false, nil
	}

	if err := config.Persist(filename); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Config) Persist(filename string) error {
	contents, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	filename = c.path(filename)
	if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.WriteFile(filename, contents, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	validationErrors := make([]error, 0)
	validationErrors = append(validationErrors, validateService(c.Service)...)
	if c.Service.Timeout.Duration < 0 {
		validationErrors = append(validationErrors, fmt.Errorf("service.timeout must not be negative"))
	}
	if len(validationErrors) > 0 {
		return fmt.Errorf("invalid configuration: %v", utilerrors.NewAggregate(validationErrors).Error())
	}
	return nil
}

func validateService(service Service) []error {
	validationErrors := make([]error, 0)
	if err := validator.New().Struct(service); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return append(validationErrors, err)
		}
		for _, fe := range fieldErrors {
			validationErrors = append(validationErrors, fmt.Errorf("service.%s: failed on %q", fe.Field(), fe.Tag()))
		}
		return validationErrors
	}
	// the url tag accepts schemes without a host, such as "mailto:"
	u, err := url.Parse(service.Server)
	if err != nil {
		validationErrors = append(validationErrors, fmt.Errorf("invalid server format %q: %w", service.Server, err))
	} else if len(u.Hostname()) == 0 {
		validationErrors = append(validationErrors, fmt.Errorf("invalid server format %q: no hostname", service.Server))
	}
	return validationErrors
}

