package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/wsocket/internal/config"
	"github.com/danmuck/wsocket/internal/observability"
	"github.com/danmuck/wsocket/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to wsocketd config.toml (defaults apply when empty)")
	initPath := flag.String("init", "", "write a config template to this path and exit")
	force := flag.Bool("force", false, "overwrite an existing template with -init")
	validate := flag.Bool("validate", false, "validate -config and exit")
	flag.Parse()

	if *initPath != "" {
		if err := config.WriteTemplate(*initPath, *force); err != nil {
			fmt.Fprintf(os.Stderr, "wsocketd: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote config template to %s\n", *initPath)
		return
	}

	cfg := config.DefaultServiceConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "wsocketd: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *validate {
		fmt.Printf("validated config at %s\n", *configPath)
		return
	}

	logger := observability.InitLogger("wsocketd")
	logger.Info().
		Str("node", cfg.Node).
		Str("addr", cfg.Addr).
		Str("admin_addr", cfg.AdminAddr).
		Strs("compression", cfg.Transport.Session.Compression.Codecs).
		Dur("keepalive", cfg.Transport.Session.KeepAlive.Expiry).
		Msg("wsocketd starting")

	if err := server.NewService(cfg, logger).Run(); err != nil {
		log.Fatal().Err(err).Msg("wsocketd stopped")
	}
	logger.Info().Msg("wsocketd stopped")
}
