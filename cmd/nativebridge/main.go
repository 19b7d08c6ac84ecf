//go:build cgo

// Command nativebridge is built as a C shared library:
//
//	go build -buildmode=c-shared -o libnativebridge.so ./cmd/nativebridge
//
// Every string and record it returns is allocated with malloc and stays owned by
// the library's ledger until the host hands it back to the matching release function.
package main

/*
#include "nativebridge.h"
*/
import "C"

import (
	"fmt"
	"os"
	"sync"

	"github.com/patric-chuzhbe/nativebridge/internal/bridge"
	"github.com/patric-chuzhbe/nativebridge/internal/calc"
	"github.com/patric-chuzhbe/nativebridge/internal/config"
	"github.com/patric-chuzhbe/nativebridge/internal/logger"
	"github.com/patric-chuzhbe/nativebridge/internal/netfetch"
)

type library struct {
	bridge *bridge.Bridge
	strict bool
}

var (
	initOnce sync.Once
	current  *library
)

func newLibrary(cfg *config.Config) *library {
	return &library{
		bridge: bridge.New(
			calc.New(calc.WithConcurrency(cfg.BatchConcurrency)),
			netfetch.New(cfg.NetworkGetURL, cfg.NetworkGetTimeout),
		),
		strict: cfg.StrictOwnership,
	}
}

// loadConfig reads the library configuration. The host process owns os.Args
// and its working directory, so flags and .env files are not consulted: only
// the environment and the CONFIG file are.
func loadConfig() (*config.Config, error) {
	return config.New(config.WithDisableFlagsParsing(true), config.WithDisableDotEnv(true))
}

// lib configures the library on first use.
func lib() *library {
	initOnce.Do(func() {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintln(os.Stderr, "nativebridge: invalid configuration, using defaults:", err)
			cfg = config.Default()
		}
		if err := logger.Init(cfg.LogLevel); err != nil {
			fmt.Fprintln(os.Stderr, "nativebridge: logger init:", err)
		}
		current = newLibrary(cfg)
		logger.Log.Debugln("nativebridge initialized", "strict_ownership", cfg.StrictOwnership)
	})

	return current
}

func main() {}
