package reconcile

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/turbolytics/registrar/internal/app"
)

func newRunCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs a single reconciliation pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(v.GetString("config"), v, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			_, err = a.Reconcile(cmd.Context())
			return err
		},
	}

	return cmd
}
