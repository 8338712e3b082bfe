// Copyright (C) 2026 The DSTC Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command dstcd is an example host process: it loads a DSTC config,
// joins the call plane, optionally serves the read-only debug HTTP
// surface, and waits for SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gops/agent"

	"github.com/dstc-go/dstc/internal/config"
	"github.com/dstc-go/dstc/internal/debugapi"
	"github.com/dstc-go/dstc/internal/dstc"
	"github.com/dstc-go/dstc/pkg/log"
)

var (
	flagConfigFile  string
	flagLogLevel    string
	flagLogDateTime bool
	flagGops        bool
	flagVersion     bool
)

// version is overwritten at build time via -ldflags "-X main.version=...".
var version = "development"

func cliInit() {
	flag.StringVar(&flagConfigFile, "config", "", "Path to a dstcd config.json (defaults baked in if omitted)")
	flag.StringVar(&flagLogLevel, "loglevel", "info", "Sets the logging level: `[debug, info, warn, err, crit]`")
	flag.BoolVar(&flagLogDateTime, "logdate", false, "Set this flag to add date and time to log messages")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.BoolVar(&flagVersion, "version", false, "Show version information and exit")
	flag.Parse()
}

func main() {
	cliInit()

	if flagVersion {
		log.Printf("dstcd version %s", version)
		return
	}

	log.SetLogLevel(flagLogLevel)
	log.SetLogDateTime(flagLogDateTime)

	// See https://github.com/google/gops (runtime overhead is almost zero).
	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	cfg, err := config.Load(flagConfigFile)
	if err != nil {
		log.Fatalf("loading config failed: %s", err.Error())
	}

	ctx, err := dstc.Setup(cfg)
	if err != nil {
		log.Fatalf("dstc setup failed: %s", err.Error())
	}
	log.Infof("dstcd: joined group %q as node %d", cfg.MulticastGroup, ctx.NodeID())

	var debugServer *http.Server
	if cfg.DebugListenAddr != "" {
		debugServer = &http.Server{
			Addr:         cfg.DebugListenAddr,
			Handler:      debugapi.NewRouter(ctx),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			log.Infof("dstcd: debug HTTP surface listening at %s", cfg.DebugListenAddr)
			if err := debugServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("dstcd: debug HTTP server failed: %s", err.Error())
			}
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	log.Info("dstcd: shutting down")
	if debugServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := debugServer.Shutdown(shutdownCtx); err != nil {
			log.Warnf("dstcd: debug HTTP server shutdown: %s", err.Error())
		}
	}
	if err := ctx.Close(); err != nil {
		log.Errorf("dstcd: close failed: %s", err.Error())
	}
	log.Info("dstcd: graceful shutdown completed")
}
