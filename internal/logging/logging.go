// Package logging constructs the service's structured logger. Grounded on
// the intent of the teacher's internal/tools/runner_audit.go — structured,
// one line per event — but backed by a real library because the
// retrieval pack demonstrates one (go.uber.org/zap fronted by
// go-logr/logr via go-logr/zapr, both named in kubernaut's go.mod) rather
// than reimplementing the teacher's bespoke NDJSON writer.
package logging

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
)

// New builds a zap logger fronted by a logr.Logger: zap's production
// config (JSON output, info level, epoch-seconds timestamps) by default,
// or its development config when debug is true. logr.Logger is the interface every
// component constructor accepts so call sites never depend on zap
// directly.
func New(debug bool) (logr.Logger, func(), error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	zl, err := cfg.Build()
	if err != nil {
		return logr.Discard(), func() {}, err
	}
	sync := func() { _ = zl.Sync() }
	return zapr.NewLogger(zl), sync, nil
}
