package config

import "time"

// DomainConfig holds the business rules the board enforces locally
type DomainConfig struct {
	// Answer constraints
	MaxAnswerLength int

	// Question payload requirements. A loaded question missing any of these
	// is replaced by the fallback sample.
	RequireTitle   bool
	RequireBody    bool
	MinAnswerCount int

	// Time constraints
	ConfirmTimeout time.Duration
	LoadTimeout    time.Duration
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxAnswerLength: 30000,

		RequireTitle:   true,
		RequireBody:    true,
		MinAnswerCount: 1,

		ConfirmTimeout: 15 * time.Second,
		LoadTimeout:    15 * time.Second,
	}
}
