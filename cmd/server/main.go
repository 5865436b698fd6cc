package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/yurifrl/planillas/pkg/aportantes"
	"github.com/yurifrl/planillas/pkg/config"
	"github.com/yurifrl/planillas/pkg/importer"
	"github.com/yurifrl/planillas/pkg/server"
	"github.com/yurifrl/planillas/pkg/service"
	"github.com/yurifrl/planillas/pkg/session"
)

func main() {
	flags := pflag.NewFlagSet("planillas-server", pflag.ExitOnError)
	cfgFile := flags.StringP("config", "c", "", "Config file (default is config.yaml)")
	flags.String("addr", ":8000", "Listen address")
	flags.Duration("session-ttl", 0, "Lifetime of uploaded contributor tables")
	config.AddFlags(flags)
	flags.Parse(os.Args[1:])

	cfg, err := config.Build(*cfgFile, flags)
	if err != nil {
		log.Fatal("invalid configuration", "err", err)
	}
	logger := cfg.Logger("planillas")

	store, closeStore, err := service.OpenHistory(cfg)
	if err != nil {
		logger.Fatal("failed to open history", "err", err)
	}
	defer closeStore()

	proc, err := service.FromConfig(cfg, logger, store)
	if err != nil {
		logger.Fatal("failed to build processor", "err", err)
	}

	srv := server.New(cfg, logger, proc, importer.New(cfg.WorkDir, logger), session.New[*aportantes.Table](cfg.Session.TTL))
	logger.Info("starting server", "addr", cfg.Server.Addr, "preset", proc.Engine().Preset().Name)
	if err := srv.Start(cfg.Server.Addr); err != nil {
		logger.Fatal("server error", "err", err)
	}
}
