package retry

import (
	"math"
	"time"

	config "github.com/ejcourts/predms/pkg/etl/core/config"
	exception "github.com/ejcourts/predms/pkg/etl/support/util/exception"
)

// RetryPolicy decides whether a failed attempt may be retried and how long
// to wait before the next one.
type RetryPolicy interface {
	// ShouldRetry determines if a given error is retryable.
	ShouldRetry(err error) bool
	// GetBackoffInterval returns the waiting time before the given attempt
	// number is retried. attempt starts from 1.
	GetBackoffInterval(attempt int) time.Duration
	// GetMaxAttempts returns the maximum number of attempts per step.
	GetMaxAttempts() int
}

// DefaultRetryPolicyFactory creates RetryPolicy instances from the retry
// section of the pipeline configuration.
type DefaultRetryPolicyFactory struct{}

// NewDefaultRetryPolicyFactory creates a new DefaultRetryPolicyFactory.
func NewDefaultRetryPolicyFactory() *DefaultRetryPolicyFactory {
	return &DefaultRetryPolicyFactory{}
}

// Create builds a RetryPolicy from the given retry configuration, using the
// default error classifier.
func (f *DefaultRetryPolicyFactory) Create(cfg config.RetryConfig) RetryPolicy {
	return f.CreateWithClassifier(cfg, exception.DefaultClassifier)
}

// CreateWithClassifier builds a RetryPolicy with a caller-supplied error
// classifier. Tests and alternative drivers hook in here.
func (f *DefaultRetryPolicyFactory) CreateWithClassifier(cfg config.RetryConfig, classifier exception.Classifier) RetryPolicy {
	return &defaultRetryPolicy{
		maxAttempts:             cfg.MaxAttempts,
		initialInterval:         time.Duration(cfg.InitialInterval) * time.Millisecond,
		multiplier:              cfg.Multiplier,
		retryableExceptions:     cfg.RetryableExceptions,
		retryOnStatementTimeout: cfg.RetryOnStatementTimeout,
		classifier:              classifier,
	}
}

// defaultRetryPolicy retries errors the classifier marks TRANSIENT, plus any
// error matching the configured retryable exception names. Statement
// timeouts are permanent unless explicitly opted in.
type defaultRetryPolicy struct {
	maxAttempts             int
	initialInterval         time.Duration
	multiplier              float64
	retryableExceptions     []string
	retryOnStatementTimeout bool
	classifier              exception.Classifier
}

// GetMaxAttempts returns the maximum number of attempts.
func (p *defaultRetryPolicy) GetMaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry determines if an error is retryable.
func (p *defaultRetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	// Statement timeouts are handled before classification so the opt-in
	// flag always wins.
	if exception.IsStatementTimeout(err) {
		return p.retryOnStatementTimeout
	}

	if p.classifier != nil && p.classifier(err) == exception.ClassTransient {
		return true
	}

	// Match against the configured retryable exception names.
	for _, typeName := range p.retryableExceptions {
		if exception.IsErrorOfType(err, typeName) {
			return true
		}
	}

	return false
}

// GetBackoffInterval returns the exponential backoff interval for the given
// attempt number: initialInterval * multiplier^(attempt-1).
func (p *defaultRetryPolicy) GetBackoffInterval(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := math.Pow(p.multiplier, float64(attempt-1))
	return time.Duration(float64(p.initialInterval) * factor)
}

// Verify interfaces
var _ RetryPolicy = (*defaultRetryPolicy)(nil)
