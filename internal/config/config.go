// Package config implements CLI flag + environment variable resolution
// for the inspection service's startup parameters. Grounded on the
// teacher's cmd/agentcli/cli_config.go and flags_types.go: flag values
// track whether they were explicitly set on the command line (as opposed
// to inherited from an environment variable or a hardcoded default), so
// flags win over env which wins over default, generalized here from the
// agent CLI's flag set to the inspection service's own.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// Config holds the resolved startup parameters for cmd/inspectord.
type Config struct {
	Host              string
	Port              int
	Root              string
	LinkerURL         string
	WorkerCount       int
	SessionTTLSeconds int
	AutoPromoteGolden bool
}

const (
	defaultHost              = "0.0.0.0"
	defaultPort              = 8080
	defaultRoot              = "./data"
	defaultWorkerCount       = 0 // 0 means "default to runtime.NumCPU()"
	defaultSessionTTLSeconds = 3600
	defaultAutoPromote       = true
)

// trackedString is a flag.Value that records whether Set was ever called,
// distinguishing "explicitly passed on the command line" from "left at its
// default value" — the same provenance distinction the teacher's flex-flag
// types make for its CLI.
type trackedString struct {
	value string
	isSet bool
}

func (t *trackedString) String() string { return t.value }
func (t *trackedString) Set(v string) error {
	t.value = v
	t.isSet = true
	return nil
}

// Parse resolves Config from args (typically os.Args[1:]) and the process
// environment. Precedence: explicit flag > AOI_<NAME> env var > default.
func Parse(args []string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	fs := flag.NewFlagSet("inspectord", flag.ContinueOnError)

	host := &trackedString{value: defaultHost}
	port := &trackedString{value: strconv.Itoa(defaultPort)}
	root := &trackedString{value: defaultRoot}
	linkerURL := &trackedString{}
	workerCount := &trackedString{value: strconv.Itoa(defaultWorkerCount)}
	ttl := &trackedString{value: strconv.Itoa(defaultSessionTTLSeconds)}
	autoPromote := &trackedString{value: strconv.FormatBool(defaultAutoPromote)}

	fs.Var(host, "host", "bind host")
	fs.Var(port, "port", "bind port")
	fs.Var(root, "root", "filesystem root for sessions/products")
	fs.Var(linkerURL, "linker-url", "external barcode linker base URL")
	fs.Var(workerCount, "worker-count", "ROI worker pool size (0 = num CPUs)")
	fs.Var(ttl, "session-ttl-seconds", "session inactivity expiry, seconds")
	fs.Var(autoPromote, "auto-promote-golden", "enable automatic golden-sample promotion")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	resolve := func(t *trackedString, envName string) string {
		if t.isSet {
			return t.value
		}
		if v := getenv(envName); v != "" {
			return v
		}
		return t.value
	}

	cfg := &Config{
		Host:      resolve(host, "AOI_HOST"),
		Root:      resolve(root, "AOI_ROOT"),
		LinkerURL: resolve(linkerURL, "AOI_LINKER_URL"),
	}

	portStr := resolve(port, "AOI_PORT")
	p, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid --port/AOI_PORT value %q: %w", portStr, err)
	}
	cfg.Port = p

	workerStr := resolve(workerCount, "AOI_WORKER_COUNT")
	w, err := strconv.Atoi(workerStr)
	if err != nil {
		return nil, fmt.Errorf("invalid --worker-count/AOI_WORKER_COUNT value %q: %w", workerStr, err)
	}
	cfg.WorkerCount = w

	ttlStr := resolve(ttl, "AOI_SESSION_TTL_SECONDS")
	ttlVal, err := strconv.Atoi(ttlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid --session-ttl-seconds/AOI_SESSION_TTL_SECONDS value %q: %w", ttlStr, err)
	}
	cfg.SessionTTLSeconds = ttlVal

	promoteStr := resolve(autoPromote, "AOI_AUTO_PROMOTE_GOLDEN")
	promoteVal, err := strconv.ParseBool(promoteStr)
	if err != nil {
		return nil, fmt.Errorf("invalid --auto-promote-golden/AOI_AUTO_PROMOTE_GOLDEN value %q: %w", promoteStr, err)
	}
	cfg.AutoPromoteGolden = promoteVal

	return cfg, nil
}
