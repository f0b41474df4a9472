// Command zrpcd is a demo zrpc server bootstrap: it reads a yaml config
// file (listen/advertise address, middleware toggles, optional metrics
// endpoint, optional etcd-backed advertisement), registers a small Arith
// calculator service as a worked example, and serves until interrupted.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zrpc/internal/metrics"
	"zrpc/internal/zlog"
	"zrpc/message"
	"zrpc/middleware"
	"zrpc/registry"
	"zrpc/rpcrouter"
	"zrpc/server"
)

func arithDescriptors() []*rpcrouter.ServiceDescriptor {
	add := rpcrouter.NewBuilder("Add").
		Param("num1", message.Numeric).
		Param("num2", message.Numeric).
		Returns(message.Numeric).
		Handle(func(params map[string]any) (any, error) {
			return params["num1"].(float64) + params["num2"].(float64), nil
		}).
		Build()

	multiply := rpcrouter.NewBuilder("Multiply").
		Param("num1", message.Numeric).
		Param("num2", message.Numeric).
		Returns(message.Numeric).
		Handle(func(params map[string]any) (any, error) {
			return params["num1"].(float64) * params["num2"].(float64), nil
		}).
		Build()

	return []*rpcrouter.ServiceDescriptor{add, multiply}
}

func main() {
	configPath := flag.String("config", "", "path to a yaml config file (defaults applied if omitted)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("zrpcd: failed to load config: %v", err)
	}

	var dir registry.Directory
	if cfg.Etcd.Enabled {
		etcdDir, err := registry.NewEtcdDirectory(cfg.Etcd.Endpoints)
		if err != nil {
			log.Fatalf("zrpcd: failed to connect to etcd: %v", err)
		}
		dir = etcdDir
	}

	svr := server.NewServer(dir)
	for _, sd := range arithDescriptors() {
		if err := svr.Register(sd); err != nil {
			log.Fatalf("zrpcd: failed to register %s: %v", sd.Method, err)
		}
	}

	if cfg.Middleware.Logging {
		svr.Use(middleware.LoggingMiddleware())
	}
	if cfg.Middleware.RateLimit.Enabled {
		svr.Use(middleware.RateLimitMiddleware(cfg.Middleware.RateLimit.Rate, cfg.Middleware.RateLimit.Burst))
	}
	if cfg.Middleware.Retry.Enabled {
		svr.Use(middleware.RetryMiddleware(cfg.Middleware.Retry.MaxRetries, cfg.Middleware.Retry.BaseDelay))
	}
	if cfg.Middleware.Timeout > 0 {
		svr.Use(middleware.TimeOutMiddleware(cfg.Middleware.Timeout))
	}

	if cfg.Metrics.RecentCapacity > 0 {
		svr.EnableRecent(cfg.Metrics.RecentCapacity)
	}

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if cfg.Metrics.RecentCapacity > 0 {
			mux.HandleFunc("/recent", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(svr.Recent().Snapshot())
			})
		}
		go func() {
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				zlog.Errorf("zrpcd: metrics endpoint stopped: %v", err)
			}
		}()
		zlog.Infof("zrpcd: metrics endpoint listening on %s", cfg.Metrics.Addr)
	}

	go func() {
		if err := svr.Serve("tcp", cfg.ListenAddr, cfg.AdvertiseAddr); err != nil {
			zlog.Errorf("zrpcd: serve stopped: %v", err)
		}
	}()
	zlog.Infof("zrpcd: listening on %s", cfg.ListenAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	zlog.Infof("zrpcd: shutting down")
	if err := svr.Shutdown(10 * time.Second); err != nil {
		zlog.Errorf("zrpcd: shutdown error: %v", err)
	}
}
