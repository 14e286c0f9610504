package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"finvoice/config"
	"finvoice/core"
	"finvoice/observability/logging"
	"finvoice/rpc"
	"finvoice/storage"
)

const envVar = "FINVOICE_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envVar))
	logger := logging.Setup("finvoiced", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		logger.Error("failed to open ledger database", "error", err, "dataDir", cfg.DataDir)
		os.Exit(1)
	}

	node := core.NewNode(db)
	defer node.Close()

	logger.Info("node ready", "network", cfg.NetworkName, "dataDir", cfg.DataDir)

	server := rpc.NewServer(node, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
