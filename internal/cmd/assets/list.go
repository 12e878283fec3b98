package assets

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/turbolytics/registrar/internal/app"
	"github.com/turbolytics/registrar/pkg/reconciler"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

type listedAsset struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	AssetType string `json:"asset_type" yaml:"asset_type"`
	LinkKey   string `json:"link_key" yaml:"link_key"`
}

func newListCommand(v *viper.Viper) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lists the assets a run would process",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(v.GetString("config"), v, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			candidates, err := a.Candidates(cmd.Context())
			if err != nil {
				return err
			}
			return Write(cmd.OutOrStdout(), format, candidates)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", FormatTable, "Output format: table, json, yaml")

	return cmd
}

// Write renders assets in the requested format.
func Write(w io.Writer, format string, assets []reconciler.Asset) error {
	listed := make([]listedAsset, 0, len(assets))
	for _, a := range assets {
		listed = append(listed, listedAsset{
			ID:        a.ID,
			Name:      a.Name,
			AssetType: a.AssetTypeLabel,
			LinkKey:   a.LinkKey(),
		})
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(listed)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(listed)
	case FormatTable, "":
		table := tablewriter.NewTable(w)
		table.Header("ID", "NAME", "ASSET TYPE", "LINK KEY")
		for _, l := range listed {
			if err := table.Append(l.ID, l.Name, l.AssetType, l.LinkKey); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
		fmt.Fprintf(w, "%d matching assets\n", len(listed))
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
