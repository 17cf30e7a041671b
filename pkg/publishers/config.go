package publishers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Publisher types.
const (
	TypeQueue = "queue"
	TypeHTTP  = "http"
)

// Queue providers.
const (
	QueueProviderAWSSQS = "aws-sqs"
	QueueProviderAWSSNS = "aws-sns"
	QueueProviderGCP    = "gcp"
)

const (
	httpDefaultMethod         = "POST"
	httpDefaultTimeoutSeconds = 5
)

type configFile struct {
	Publishers []PublisherConfig `json:"publishers" yaml:"publishers"`
}

// PublisherConfig is one sink declared in the publishers file.
type PublisherConfig struct {
	ID      string                `json:"id" yaml:"id"`
	Type    string                `json:"type" yaml:"type"`
	Enabled *bool                 `json:"enabled" yaml:"enabled"`
	Queue   *QueuePublisherConfig `json:"queue" yaml:"queue"`
	HTTP    *HTTPPublisherConfig  `json:"http" yaml:"http"`
}

// QueuePublisherConfig selects a cloud queue provider.
type QueuePublisherConfig struct {
	Provider string           `json:"provider" yaml:"provider"`
	SQS      *AWSSQSConfig    `json:"sqs" yaml:"sqs"`
	SNS      *AWSSNSConfig    `json:"sns" yaml:"sns"`
	GCP      *GCPPubSubConfig `json:"gcp" yaml:"gcp"`
}

// AWSCredentials are static credentials shared by the AWS senders.
type AWSCredentials struct {
	Region          string `json:"region" yaml:"region"`
	AccessKeyID     string `json:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" yaml:"secret_access_key"`
}

// AWSSQSConfig targets an SQS queue.
type AWSSQSConfig struct {
	QueueURL       string `json:"queue_url" yaml:"queue_url"`
	AWSCredentials `json:",inline" yaml:",inline"`
}

// AWSSNSConfig targets an SNS topic.
type AWSSNSConfig struct {
	TopicARN       string `json:"topic_arn" yaml:"topic_arn"`
	AWSCredentials `json:",inline" yaml:",inline"`
}

// GCPPubSubConfig targets a Pub/Sub topic.
type GCPPubSubConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	Topic           string `json:"topic" yaml:"topic"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
}

// HTTPPublisherConfig targets a webhook.
type HTTPPublisherConfig struct {
	URL            string            `json:"url" yaml:"url"`
	Method         string            `json:"method" yaml:"method"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
}

// EnabledValue returns the enabled flag, defaulting to true.
func (cfg PublisherConfig) EnabledValue() bool {
	return cfg.Enabled == nil || *cfg.Enabled
}

// ConfigRegistry holds the validated publisher entries of one file.
type ConfigRegistry struct {
	mu         sync.RWMutex
	publishers []PublisherConfig
	idx        map[string]int
}

// LoadRegistry loads the publisher registry from a YAML or JSON file. Environment
// variables are expanded so secrets can stay out of the file.
func LoadRegistry(path string) (*ConfigRegistry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("publishers file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read publishers file: %w", err)
	}

	var cf configFile
	expanded := []byte(os.ExpandEnv(string(raw)))
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(expanded, &cf)
	case ".yaml", ".yml", "":
		err = yaml.Unmarshal(expanded, &cf)
	default:
		return nil, fmt.Errorf("publishers file extension %q not recognized (expected YAML or JSON)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode publishers file: %w", err)
	}
	if len(cf.Publishers) == 0 {
		return nil, errors.New("publishers file contains no publishers entries")
	}

	return NewConfigRegistry(cf.Publishers...)
}

// NewConfigRegistry sanitizes and validates cfgs.
func NewConfigRegistry(cfgs ...PublisherConfig) (*ConfigRegistry, error) {
	reg := &ConfigRegistry{
		publishers: make([]PublisherConfig, 0, len(cfgs)),
		idx:        make(map[string]int, len(cfgs)),
	}
	for i, cfg := range cfgs {
		cfg = sanitizePublisherConfig(cfg)
		if err := cfg.validate(); err != nil {
			return nil, fmt.Errorf("publishers[%d]: %w", i, err)
		}
		if _, dup := reg.idx[cfg.ID]; dup {
			return nil, fmt.Errorf("duplicate publisher id %q", cfg.ID)
		}
		reg.idx[cfg.ID] = len(reg.publishers)
		reg.publishers = append(reg.publishers, cfg)
	}
	return reg, nil
}

// ByID returns the publisher config by id.
func (r *ConfigRegistry) ByID(id string) (PublisherConfig, bool) {
	if r == nil {
		return PublisherConfig{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.idx[strings.TrimSpace(id)]
	if !ok {
		return PublisherConfig{}, false
	}
	return r.publishers[i], true
}

// All returns every configured publisher.
func (r *ConfigRegistry) All() []PublisherConfig {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]PublisherConfig(nil), r.publishers...)
}

// Enabled returns the publishers that are switched on.
func (r *ConfigRegistry) Enabled() []PublisherConfig {
	var out []PublisherConfig
	for _, cfg := range r.All() {
		if cfg.EnabledValue() {
			out = append(out, cfg)
		}
	}
	return out
}

func sanitizePublisherConfig(cfg PublisherConfig) PublisherConfig {
	cfg.ID = strings.TrimSpace(cfg.ID)
	cfg.Type = strings.ToLower(strings.TrimSpace(cfg.Type))

	if q := cfg.Queue; q != nil {
		qc := *q
		qc.Provider = strings.ToLower(strings.TrimSpace(qc.Provider))
		if qc.SQS != nil {
			s := *qc.SQS
			s.QueueURL = strings.TrimSpace(s.QueueURL)
			s.AWSCredentials = s.AWSCredentials.trimmed()
			qc.SQS = &s
		}
		if qc.SNS != nil {
			s := *qc.SNS
			s.TopicARN = strings.TrimSpace(s.TopicARN)
			s.AWSCredentials = s.AWSCredentials.trimmed()
			qc.SNS = &s
		}
		if qc.GCP != nil {
			g := *qc.GCP
			g.ProjectID = strings.TrimSpace(g.ProjectID)
			g.Topic = strings.TrimSpace(g.Topic)
			g.CredentialsFile = strings.TrimSpace(g.CredentialsFile)
			qc.GCP = &g
		}
		cfg.Queue = &qc
	}

	if h := cfg.HTTP; h != nil {
		c := *h
		c.URL = strings.TrimSpace(c.URL)
		c.Method = strings.ToUpper(strings.TrimSpace(c.Method))
		if c.Method == "" {
			c.Method = httpDefaultMethod
		}
		c.Headers = sanitizeHeaders(c.Headers)
		if c.TimeoutSeconds <= 0 {
			c.TimeoutSeconds = httpDefaultTimeoutSeconds
		}
		cfg.HTTP = &c
	}
	return cfg
}

func (c AWSCredentials) trimmed() AWSCredentials {
	return AWSCredentials{
		Region:          strings.TrimSpace(c.Region),
		AccessKeyID:     strings.TrimSpace(c.AccessKeyID),
		SecretAccessKey: strings.TrimSpace(c.SecretAccessKey),
	}
}

func sanitizeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key, val := strings.TrimSpace(k), strings.TrimSpace(v)
		if key != "" && val != "" {
			out[key] = val
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (cfg PublisherConfig) validate() error {
	if cfg.ID == "" {
		return errors.New("id is required")
	}
	switch cfg.Type {
	case "":
		return fmt.Errorf("type is required for publisher %q", cfg.ID)
	case TypeQueue:
		return cfg.validateQueue()
	case TypeHTTP:
		if cfg.HTTP == nil {
			return fmt.Errorf("http config required for publisher %q", cfg.ID)
		}
		u, err := url.Parse(cfg.HTTP.URL)
		if cfg.HTTP.URL == "" || err != nil || u.Host == "" {
			return fmt.Errorf("http.url must be an absolute url for publisher %q", cfg.ID)
		}
		return nil
	default:
		return fmt.Errorf("type %q not supported for publisher %q", cfg.Type, cfg.ID)
	}
}

func (cfg PublisherConfig) validateQueue() error {
	q := cfg.Queue
	if q == nil {
		return fmt.Errorf("queue config required for publisher %q", cfg.ID)
	}

	var missing []string
	require := func(field, val string) {
		if val == "" {
			missing = append(missing, field)
		}
	}

	switch q.Provider {
	case QueueProviderAWSSQS:
		if q.SQS == nil {
			return fmt.Errorf("sqs config required for publisher %q", cfg.ID)
		}
		require("sqs.queue_url", q.SQS.QueueURL)
		q.SQS.AWSCredentials.require("sqs", require)
	case QueueProviderAWSSNS:
		if q.SNS == nil {
			return fmt.Errorf("sns config required for publisher %q", cfg.ID)
		}
		require("sns.topic_arn", q.SNS.TopicARN)
		q.SNS.AWSCredentials.require("sns", require)
	case QueueProviderGCP:
		if q.GCP == nil {
			return fmt.Errorf("gcp config required for publisher %q", cfg.ID)
		}
		require("gcp.project_id", q.GCP.ProjectID)
		require("gcp.topic", q.GCP.Topic)
	default:
		return fmt.Errorf("queue provider %q not supported for publisher %q", q.Provider, cfg.ID)
	}

	if len(missing) > 0 {
		return fmt.Errorf("%s required for publisher %q", strings.Join(missing, ", "), cfg.ID)
	}
	return nil
}

func (c AWSCredentials) require(prefix string, require func(field, val string)) {
	require(prefix+".region", c.Region)
	require(prefix+".access_key_id", c.AccessKeyID)
	require(prefix+".secret_access_key", c.SecretAccessKey)
}
