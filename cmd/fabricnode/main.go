// This file is part of gnunet-go, a GNUnet-implementation in Golang.
// Copyright (C) 2019-2022 Bernd Fix  >Y<
//
// gnunet-go is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// gnunet-go is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later

// fabricnode launches one node: it reads a configuration file, wires up
// the node manager and whatever startup services the configuration
// names, and runs until an OS signal asks it to stop.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bfix-fabric/fabricnode/config"
	"github.com/bfix-fabric/fabricnode/manager"
	"github.com/bfix-fabric/fabricnode/node"
	"github.com/bfix-fabric/fabricnode/util"

	"github.com/bfix/gospel/logger"
)

// Exit codes, the sysexits.h subset the configuration surface commits to.
const (
	exitOK       = 0
	exitConfig   = 64
	exitIOErr    = 74
	exitSoftware = 78
)

func main() {
	os.Exit(run())
}

func run() int {
	defer logger.Flush()

	var (
		cfgFile  string
		logLevel int
		httpAddr string
	)
	flag.StringVar(&cfgFile, "c", "fabricnode-config.json", "node configuration file")
	flag.IntVar(&logLevel, "L", logger.INFO, "log level")
	flag.StringVar(&httpAddr, "http", "", "optional read-only status endpoint, e.g. 127.0.0.1:8080")
	flag.Parse()

	logger.SetLogLevel(logLevel)

	if err := config.ParseConfig(cfgFile); err != nil {
		logger.Printf(logger.ERROR, "[fabricnode] invalid configuration: %s", err)
		return exitConfig
	}
	cfg := config.Cfg.Node

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, root := node.New(ctx)

	storage, err := storageFromConfig(ctx, cfg)
	if err != nil {
		logger.Printf(logger.ERROR, "[fabricnode] storage setup failed: %s", err)
		return exitIOErr
	}

	mgr := manager.New(storage)
	if _, err := root.StartWorker([]*util.Address{manager.Address}, mgr); err != nil {
		logger.Printf(logger.ERROR, "[fabricnode] failed to start node manager: %s", err)
		return exitSoftware
	}

	if err := startConfiguredServices(ctx, root, cfg); err != nil {
		logger.Printf(logger.ERROR, "[fabricnode] startup_services failed: %s", err)
		return exitSoftware
	}

	if httpAddr != "" {
		manager.NewHTTPStatus(mgr, httpAddr).Start(ctx)
	}

	logger.Printf(logger.INFO, "[fabricnode] %q running, bound at %s", cfg.NodeName, cfg.BindAddress)
	waitForSignal()
	logger.Println(logger.INFO, "[fabricnode] shutting down")
	root.Stop()
	return exitOK
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 5)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	tick := time.NewTicker(5 * time.Minute)
	defer tick.Stop()
	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGINT, syscall.SIGTERM:
				logger.Printf(logger.INFO, "[fabricnode] terminating on signal %s", sig)
				return
			case syscall.SIGHUP:
				logger.Println(logger.INFO, "[fabricnode] SIGHUP (config reload not implemented)")
			}
		case now := <-tick.C:
			logger.Println(logger.DBG, "[fabricnode] heartbeat at "+now.String())
		}
	}
}
