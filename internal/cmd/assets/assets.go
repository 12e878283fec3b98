package assets

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewCommand(v *viper.Viper) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "assets",
		Short: "Inspects the asset catalog",
	}
	cmd.AddCommand(newListCommand(v))
	return cmd
}
