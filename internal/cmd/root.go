package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/turbolytics/registrar/internal/app"
	"github.com/turbolytics/registrar/internal/cmd/assets"
	"github.com/turbolytics/registrar/internal/cmd/reconcile"
	"github.com/turbolytics/registrar/internal/config"
	"github.com/turbolytics/registrar/pkg/reconciler"
)

const envPrefix = "REGISTRAR"

func NewRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var cmd = &cobra.Command{
		Use:   "registrar",
		Short: "Creates and links a VRM application for each asset of a type",
		Long: `registrar lists every asset of a given type, creates an application
named after each one and links the asset to it. Link state is not checked,
so every run creates a new application per asset. Without a subcommand it
starts an interactive menu.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(v.GetString("config"), v, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			return runMenu(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), a.Logger, func(ctx context.Context) error {
				_, err := a.Reconcile(ctx)
				return err
			})
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringP("config", "c", "", "Path to config file")
	flags.String(config.KeyLogFile, "registrar.log", "Path to the run log")
	flags.String(config.KeyLogLevel, "info", "Log level: debug, info, warn, error")
	flags.String(config.KeyBaseURL, "", "API base URL")
	flags.Int(config.KeyTimeout, 30, "Per request timeout in seconds")
	flags.String(config.KeyAssetType, reconciler.DefaultAssetType, "Asset type label to reconcile")
	flags.Int(config.KeyPageSize, reconciler.DefaultPageSize, "Assets requested per page")
	flags.Int(config.KeyMaxPages, 0, "Maximum pages to fetch, 0 for no limit")
	flags.String(config.KeyProfile, "", "Credentials profile, defaults to $VERACODE_API_PROFILE or default")
	flags.String(config.KeyCredsFile, "", "Path to the credentials file, defaults to ~/.veracode/credentials")
	flags.String(config.KeyReportDir, "", "Write run reports under this directory")

	for _, name := range []string{
		"config",
		config.KeyLogFile,
		config.KeyLogLevel,
		config.KeyBaseURL,
		config.KeyTimeout,
		config.KeyAssetType,
		config.KeyPageSize,
		config.KeyMaxPages,
		config.KeyProfile,
		config.KeyCredsFile,
		config.KeyReportDir,
	} {
		v.BindPFlag(name, flags.Lookup(name))
	}

	cmd.AddCommand(reconcile.NewCommand(v))
	cmd.AddCommand(assets.NewCommand(v))

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cmd := NewRootCommand()
	err := cmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, reconciler.ErrSetup) {
			fmt.Fprintln(os.Stderr, config.CredentialsHelp)
		}
		os.Exit(1)
	}
}
