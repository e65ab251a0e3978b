package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/probelink/probelink/internal/bridge"
	"github.com/probelink/probelink/internal/journal"
	"github.com/probelink/probelink/internal/obs"
)

func main() {
	flag.Parse()
	if cfg.ConfigFile != "" {
		if err := loadConfigFile(cfg.ConfigFile); err != nil {
			obs.Error("config.load", obs.Fields{"err": err.Error()})
			os.Exit(1)
		}
	}
	if cfg.Debug {
		obs.EnableDebug(true)
	}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			obs.Error("log.open", obs.Fields{"err": err.Error(), "path": cfg.LogFile})
			os.Exit(1)
		}
		defer f.Close()
		obs.SetOutput(f)
	}

	obs.Info("bridge.start", obs.Fields{"main": cfg.MainAddr, "client": cfg.ClientAddr, "metrics": cfg.MetricsAddr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := journal.Open(journal.Options{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		Keep:          cfg.JournalKeep,
	})
	if err != nil {
		obs.Error("journal.open", obs.Fields{"err": err.Error()})
		os.Exit(1)
	}
	defer store.Close()

	b, err := bridge.New(bridge.Config{
		MainAddr:    cfg.MainAddr,
		ClientAddr:  cfg.ClientAddr,
		AcceptRate:  cfg.AcceptRate,
		AcceptBurst: cfg.AcceptBurst,
	}, &eventSink{journal: store})
	if err != nil {
		obs.Error("bridge.listen", obs.Fields{"err": err.Error()})
		os.Exit(1)
	}

	if cfg.PIDFile != "" {
		if err := os.WriteFile(cfg.PIDFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
			obs.Error("pid.write", obs.Fields{"err": err.Error(), "path": cfg.PIDFile})
			os.Exit(1)
		}
		defer os.Remove(cfg.PIDFile)
	}

	if cfg.MetricsAddr != "" {
		go startMetricsServer(cfg.MetricsAddr, b, store)
	}

	obs.Info("bridge.ready", obs.Fields{"main": b.MainAddr(), "client": b.ClientAddr()})
	if err := b.Run(ctx); err != nil {
		obs.Error("bridge.run", obs.Fields{"err": err.Error()})
		os.Exit(1)
	}
	obs.Info("bridge.shutdown.complete", obs.Fields{})
}
