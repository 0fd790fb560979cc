package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/gophersatwork/aspcheck"
	"github.com/gophersatwork/aspcheck/lsp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	tcpAddr string
	verbose bool
)

func main() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default: nearest asp-parser.toml)")
	rootCmd.Flags().StringVar(&tcpAddr, "tcp", "", "listen on a TCP address instead of stdio, e.g. localhost:7998")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(aspcheck.Version)); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "aspcheck-lsp",
	Short: "Language server for ASP Classic syntax checking",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logLevel := slog.LevelInfo
		if verbose {
			logLevel = slog.LevelDebug
		}
		// stdout carries JSON-RPC
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))

		cfg, err := aspcheck.LoadConfig(afero.NewOsFs(), ".", cfgFile, logger)
		if err != nil {
			logger.Error("Failed to load configuration", "error", err)
			return err
		}

		server := lsp.NewServer(aspcheck.NewChecker(cfg.ParseOptions(), logger), logger)
		if tcpAddr != "" {
			return server.RunTCP(tcpAddr)
		}
		return server.RunStdio()
	},
}
