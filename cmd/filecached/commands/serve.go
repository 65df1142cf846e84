/*
 * Copyright 2026 The Filecached Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package commands

import (
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/webosose/filecache/pkg/cache"
	"github.com/webosose/filecache/pkg/config"
	"github.com/webosose/filecache/pkg/observability/logging"
	"github.com/webosose/filecache/pkg/rpc"
	"github.com/webosose/filecache/pkg/sandbox"
	"github.com/webosose/filecache/pkg/supervisor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the filecached daemon in the foreground",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	conf, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{
		LogFile:  conf.Logging.LogFile,
		LogLevel: conf.Logging.LogLevel,
	})
	defer log.Close()
	for _, w := range conf.LoaderWarnings {
		log.Warn("config loader warning", logging.Pairs{"detail": w})
	}

	csOpts := cache.DefaultCacheSetOptions()
	csOpts.EnforceReserve = conf.Main.EnforceReserve
	cs, err := cache.NewCacheSet(conf.Main.BaseDir, log, csOpts)
	if err != nil {
		log.Fatal(1, "failed to initialize cache set", logging.Pairs{"error": err.Error()})
		return err
	}

	for name, o := range conf.Caches {
		if err := cs.DefineType(name, o); err != nil {
			log.Fatal(1, "failed to define cache type from config", logging.Pairs{"type": name, "error": err.Error()})
			return err
		}
	}

	if conf.Sandbox != nil {
		grants := make([]sandbox.Grant, 0, len(conf.Sandbox.Grants))
		for _, g := range conf.Sandbox.Grants {
			grants = append(grants, sandbox.Grant{Principal: g.Principal, Prefix: g.Prefix})
		}
		cs.SetSandbox(sandbox.New(grants...))
		if conf.Sandbox.DownloadDir != "" {
			cs.SetDefaultDownloadDir(conf.Sandbox.DownloadDir)
		}
	}

	if err := cs.WalkDirTree(); err != nil {
		log.Fatal(1, "failed to rebuild cache index from disk", logging.Pairs{"error": err.Error()})
		return err
	}
	if err := cs.CleanupAtStartup(); err != nil {
		log.Warn("startup cleanup reported an error", logging.Pairs{"error": err.Error()})
	}

	cs.Start()
	defer cs.Stop()

	server := rpc.NewServer(cs, log)

	listener, err := net.Listen("unix", conf.Main.ListenSocket)
	if err != nil {
		log.Fatal(1, "failed to bind listen socket", logging.Pairs{"socket": conf.Main.ListenSocket, "error": err.Error()})
		return err
	}
	defer listener.Close()

	go func() {
		if err := http.Serve(listener, server); err != nil {
			log.Error("rpc server stopped", logging.Pairs{"error": err.Error()})
		}
	}()

	if conf.Metrics.ListenAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := conf.Metrics.ListenAddress + ":" + strconv.Itoa(conf.Metrics.ListenPort)
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Error("metrics server stopped", logging.Pairs{"error": err.Error()})
			}
		}()
	}

	super := supervisor.New(cs, conf.Main.IdleShutdownAfter)
	go super.Run()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down on signal", logging.Pairs{"signal": sig.String()})
	case <-super.Shutdown():
		log.Info("shutting down on idle timeout", logging.Pairs{})
	}
	return nil
}
