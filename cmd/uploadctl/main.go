package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tendant/simple-upload/pkg/simpleupload"
	"github.com/tendant/simple-upload/pkg/simpleupload/config"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	_ = godotenv.Load()

	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "uploadctl",
		Short: "Upload service command line tool",
		Long: `Command line tool for the upload service.

Mints client and backend tokens, derives storage keys and drives the storage
worker's backend operations. Configuration comes from the same UPLOAD_*
environment variables the upload server reads.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewTokenCommand())
	rootCmd.AddCommand(NewSlugCommand())
	rootCmd.AddCommand(NewKeyCommand())
	rootCmd.AddCommand(NewValidateURLCommand())
	rootCmd.AddCommand(NewDeleteCommand())
	rootCmd.AddCommand(NewInfoCommand())
	rootCmd.AddCommand(NewOrphansCommand())

	return rootCmd
}

func loadConfig() (*config.ServerConfig, error) {
	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func loadService() (simpleupload.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return cfg.BuildService()
}
