package reconcile

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewCommand(v *viper.Viper) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "reconcile",
		Short: "Creates an application for each matching asset and links them",
	}
	cmd.AddCommand(newRunCommand(v))
	return cmd
}
