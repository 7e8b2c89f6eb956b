package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the plain mapping threaded through every component
// constructor — there is no process-wide registry. See spec §6
// "Configuration keys" for key names and defaults.
type Config struct {
	Threads            int           // "threads" [5]
	ParallelPut        bool          // "parallelPut" [true]
	PersistedChecksums bool          // "persistedChecksums" [true]
	SmartChecksums     bool          // "smartChecksums" [true]
	Resume             bool          // "resume" [true]
	ResumeThreshold    int64         // "resumeThreshold" [64 KiB]
	RequestTimeout     time.Duration // "requestTimeout" [ms]

	// Ambient knobs (proxy, rate limit, logging) — never read by the core.
	ProxyURL      string
	RateLimitBps  int64
	LogLevel      string
	QuietMode     bool
}

const defaultResumeThreshold = 64 * 1024

func DefaultConfig() *Config {
	return &Config{
		Threads:            5,
		ParallelPut:        true,
		PersistedChecksums: true,
		SmartChecksums:     true,
		Resume:             true,
		ResumeThreshold:    defaultResumeThreshold,
		RequestTimeout:     0,
		LogLevel:           "info",
	}
}

// LoadFromEnv overrides defaults with REPOCONNECTOR_* environment
// variables, the same precedence layer the teacher's Config.LoadFromEnv
// implements for TERAFETCH_*.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("REPOCONNECTOR_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Threads = n
		}
	}
	if v := os.Getenv("REPOCONNECTOR_RESUME"); v != "" {
		c.Resume = v == "true" || v == "1"
	}
	if v := os.Getenv("REPOCONNECTOR_RESUME_THRESHOLD"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			c.ResumeThreshold = n
		}
	}
	if v := os.Getenv("REPOCONNECTOR_REQUEST_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.RequestTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if v := os.Getenv("REPOCONNECTOR_PARALLEL_PUT"); v != "" {
		c.ParallelPut = v == "true" || v == "1"
	}
	if v := os.Getenv("REPOCONNECTOR_SMART_CHECKSUMS"); v != "" {
		c.SmartChecksums = v == "true" || v == "1"
	}
	if v := os.Getenv("REPOCONNECTOR_PROXY"); v != "" {
		c.ProxyURL = v
	}
	if v := os.Getenv("REPOCONNECTOR_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) Validate() error {
	if c.Threads < 1 {
		return fmt.Errorf("invalid threads: %d (must be >= 1)", c.Threads)
	}
	if c.ResumeThreshold < 0 {
		return fmt.Errorf("invalid resumeThreshold: %d (must be >= 0)", c.ResumeThreshold)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("invalid requestTimeout: %v (must be >= 0)", c.RequestTimeout)
	}
	return nil
}
