package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/irdesk/ir-assist/internal/company"
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List companies registered in the directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := company.Load(cfg.Companies.Path)
		if err != nil {
			return eris.Wrap(err, "load company directory")
		}

		all := dir.All()
		if len(all) == 0 {
			fmt.Println("no companies registered")
			return nil
		}

		for _, c := range all {
			line := c.ID
			if c.Ticker != "" {
				line += " (" + c.Ticker + ")"
			}
			line += "  " + c.Name
			if len(c.Aliases) > 0 {
				line += "  [" + strings.Join(c.Aliases, ", ") + "]"
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(companiesCmd)
}
