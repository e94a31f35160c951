package main

import (
	"fmt"
	"log"
	"os"

	"github.com/bitfantasy/cargotrack/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	configPath string

	cfg       *config.Config
	zapLogger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cargotrack",
	Short: "CargoTrack supply-chain ledger",
	Long: `CargoTrack records the order -> shipment -> escrow lifecycle between
manufacturers, suppliers and carriers identified by wallet addresses.

Run "cargotrack serve" to start the HTTP API, "cargotrack migrate" to create
or update the database schema.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		// 加载 .env 文件
		if err := godotenv.Load(); err != nil {
			log.Printf("Warning: .env file not found, using environment variables")
		}
		if configPath != "" {
			os.Setenv("CARGOTRACK_CONFIG", configPath)
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		zapLogger, err = initLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if zapLogger != nil {
			_ = zapLogger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cargotrack %s (built %s)\n", Version, BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./configs/config.yaml)")

	serveCmd.Flags().Bool("skip-migrate", false, "Do not run schema migration on startup")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
