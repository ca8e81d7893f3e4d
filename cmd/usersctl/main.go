package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/usersvc/internal/config"
	"github.com/dropDatabas3/usersvc/internal/observability/logger"
)

var version = "dev"

type globals struct {
	configPath string
	out        string
	timeout    time.Duration
}

func main() {
	_ = godotenv.Load()

	g := &globals{configPath: os.Getenv("USERSVC_CONFIG"), out: "text", timeout: 30 * time.Second}

	root := &cobra.Command{
		Use:           "usersctl",
		Short:         "Herramientas de operación del servicio de usuarios",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Init(logger.Config{Env: "dev", Level: "warn"})
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", g.configPath, "Path to YAML config (env USERSVC_CONFIG)")
	root.PersistentFlags().StringVar(&g.out, "out", g.out, "Formato de salida: json|text")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", g.timeout, "Timeout de la operación")

	root.AddCommand(
		migrateCmd(g),
		seedCmd(g),
		adminCmd(g),
		userCmd(g),
		tokenCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Versión del binario",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (g *globals) load() (*config.Config, error) {
	return config.Load(g.configPath)
}

func (g *globals) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), g.timeout)
}

func (g *globals) print(cmd *cobra.Command, text string, v any) error {
	w := cmd.OutOrStdout()
	if g.out == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}
