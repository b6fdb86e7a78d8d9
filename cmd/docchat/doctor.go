package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"docchat/internal/adapter/backend"
	"docchat/internal/domain"
	"docchat/internal/infra/config"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

const doctorTimeout = 5 * time.Second

// runDoctor executes all health checks and reports results.
func runDoctor(opts globalOptions) error {
	cfgPath := configPath(opts)
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "Backend URL", Fn: checkBackendURL},
		{Name: "API key", Fn: checkAPIKey},
		{Name: "Backend health", Fn: checkBackendHealth},
		{Name: "Log output", Fn: checkLogOutput},
	}

	fmt.Println("docchat doctor")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Printf("  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Printf("      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	if warn == 0 {
		fmt.Println("\nAll checks passed! docchat is ready to use.")
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return color.GreenString("[PASS]")
	case StatusWarn:
		return color.YellowString("[WARN]")
	case StatusFail:
		return color.RedString("[FAIL]")
	default:
		return "[????]"
	}
}

func notLoaded() CheckResult {
	return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
}

// checkConfigFile reports whether the config file exists and loads. A
// missing file is only a warning: defaults and environment still apply.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Check " + cfgPath + " or regenerate it with 'docchat config init --force'",
			}
		}
		if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using defaults", cfgPath),
				Fix:     "Run 'docchat config init'",
			}
		}
		return CheckResult{Status: StatusPass, Message: "config loaded from " + cfgPath}
	}
}

func checkBackendURL(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	u, err := url.Parse(cfg.Backend.BaseURL)
	if err != nil || u.Host == "" {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("invalid base_url %q", cfg.Backend.BaseURL)}
	}
	if u.Scheme == "http" && u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
		return CheckResult{
			Status:  StatusWarn,
			Message: "backend " + u.Host + " is reached over plain http",
			Fix:     "Use https for remote backends",
		}
	}
	return CheckResult{Status: StatusPass, Message: cfg.Backend.BaseURL}
}

func checkAPIKey(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	switch {
	case strings.HasPrefix(cfg.Backend.APIKey, "enc:"):
		return CheckResult{
			Status:  StatusFail,
			Message: "api_key is encrypted but DOCCHAT_CONFIG_KEY is not set",
			Fix:     "Export DOCCHAT_CONFIG_KEY with the passphrase used by 'docchat encrypt'",
		}
	case cfg.Backend.APIKey == "":
		return CheckResult{Status: StatusPass, Message: "no api key configured (not required by local backends)"}
	default:
		return CheckResult{Status: StatusPass, Message: "api key configured"}
	}
}

func checkBackendHealth(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	client := backend.New(cfg.Backend)
	ctx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
	defer cancel()

	start := time.Now()
	h, err := client.Health(ctx)
	if err != nil {
		fix := "Check that the backend is running and backend.base_url is correct"
		if errors.Is(err, domain.ErrAuthInvalid) {
			fix = "Check backend.api_key or DOCCHAT_API_KEY"
		}
		return CheckResult{Status: StatusFail, Message: err.Error(), Fix: fix}
	}

	msg := fmt.Sprintf("%s (version %s, %s)", h.Status, h.Version, time.Since(start).Round(time.Millisecond))
	if h.Status != "healthy" && h.Status != "ok" {
		return CheckResult{Status: StatusWarn, Message: msg}
	}
	var degraded []string
	for name, status := range h.Services {
		if status != "healthy" && status != "ok" && status != "connected" {
			degraded = append(degraded, name+"="+status)
		}
	}
	if len(degraded) > 0 {
		return CheckResult{Status: StatusWarn, Message: msg + "; degraded: " + strings.Join(degraded, ", ")}
	}
	return CheckResult{Status: StatusPass, Message: msg}
}

func checkLogOutput(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	out := cfg.Logger.Output
	if isTerminalOutput(out) || out == "discard" || out == "none" {
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("%q (chat logs go to %s)", out, filepath.Join(config.HomeDir(), "docchat.log")),
		}
	}
	dir := filepath.Dir(out)
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return CheckResult{Status: StatusFail, Message: dir + " is not a directory"}
	}
	return CheckResult{Status: StatusPass, Message: out}
}
