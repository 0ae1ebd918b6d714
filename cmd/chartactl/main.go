package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chartad/charta/internal/daemon"
	"github.com/chartad/charta/internal/logging"
	"github.com/chartad/charta/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to daemon config (toml)")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg := daemon.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "chartactl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	observability.InitLogger(cfg.Name, logging.Level(logging.ProfileRuntime))

	svc := daemon.NewServiceWithConfig(cfg)
	if err := svc.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "chartactl: %v\n", err)
		os.Exit(1)
	}
}
