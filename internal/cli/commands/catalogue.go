package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/modelmig/internal/service"
)

func newCatalogueCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "catalogue",
		Aliases: []string{"catalog"},
		Short:   "List the registered document kinds and their migration hops",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			registry, err := service.LoadRegistry(cfg.Migration.CatalogueDir)
			if err != nil {
				return err
			}

			kinds := registry.Describe()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(kinds)
			}

			titleColor := color.New(color.FgCyan, color.Bold)
			dim := color.New(color.FgHiBlack)
			for _, k := range kinds {
				titleColor.Fprintf(out, "%s", k.Name)
				fmt.Fprintf(out, " (tier %d, *.%s)\n", k.Tier, strings.Join(k.Extensions, ", *."))
				fmt.Fprintf(out, "  namespace  %s\n", k.Namespace)
				fmt.Fprintf(out, "  target     %s\n", k.Target)
				if len(k.References) > 0 {
					fmt.Fprintf(out, "  references %s\n", strings.Join(k.References, ", "))
				}
				if len(k.ReferencedBy) > 0 {
					fmt.Fprintf(out, "  referenced by %s\n", strings.Join(k.ReferencedBy, ", "))
				}
				for _, h := range k.Hops {
					fmt.Fprintf(out, "  %s -> %s ", h.From, h.To)
					dim.Fprintf(out, "%s\n", strings.Join(h.Steps, ", "))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the catalogue as JSON")

	return cmd
}
