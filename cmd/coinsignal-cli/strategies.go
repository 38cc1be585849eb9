package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"coinsignal/internal/strategy"
	"coinsignal/pkg/coinsignal"
)

func strategiesCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "strategies",
		Short: "List available strategies and their default parameters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tSLUG\tDEFAULTS")

			if server != "" {
				list, err := coinsignal.NewClient(server).Strategies(cmd.Context())
				if err != nil {
					return err
				}
				for _, s := range list {
					fmt.Fprintf(tw, "%s\t%s\t%+v\n", s.Name, s.Slug, s.Defaults)
				}
				return tw.Flush()
			}

			d := strategy.Params{}.WithDefaults()
			for _, k := range strategy.Kinds() {
				var defaults string
				switch k {
				case strategy.SMACrossover:
					defaults = fmt.Sprintf("short=%d long=%d", d.ShortPeriod, d.LongPeriod)
				case strategy.RSIReversion:
					defaults = fmt.Sprintf("period=%d oversold=%g overbought=%g", d.RSIPeriod, d.Oversold, d.Overbought)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", k, k.Slug(), defaults)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "query a coinsignal-server instead of the local catalog")
	return cmd
}
