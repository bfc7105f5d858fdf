package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	_ "geotasks/api/docs"
)

// @title GeoTasks API
// @version 1.0
// @description GeoTasks - tasks, users and PostGIS locations
// @termsOfService http://swagger.io/terms/

// @contact.name API Support

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8000
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Printf("[API] %v", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "api",
		Short: "GeoTasks API server",
		Long: `GeoTasks serves the task management HTTP API.

Running without a subcommand is the same as "api serve".
Configuration comes from .env, config.yaml (or CONFIG_FILE) and the environment.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMigrateCommand())
	return rootCmd
}
