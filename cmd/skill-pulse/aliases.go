package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mlpulse/skill-pulse/internal/normalize"
)

var aliasesCmd = &cobra.Command{
	Use:   "aliases",
	Short: "Inspect and validate the skill alias table",
}

var aliasesCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate an alias table file",
	Long: `Check parses an alias table and reports curation errors: empty skill ids
and surface forms claimed by more than one canonical skill.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := normalize.LoadAliasFile(args[0])
		if err != nil {
			return err
		}
		surfaces := 0
		for _, e := range entries {
			surfaces += 1 + len(e.Aliases)
		}
		fmt.Fprintf(os.Stdout, "ok: %d skill(s), %d surface form(s)\n", len(entries), surfaces)
		return nil
	},
}

var aliasesListCmd = &cobra.Command{
	Use:   "list [file]",
	Short: "List canonical skills and their surface forms",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := normalize.LoadAliasFile(args[0])
		if err != nil {
			return err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
		for _, e := range entries {
			fmt.Fprintf(os.Stdout, "%-24s  %s", e.ID, e.Name)
			if len(e.Aliases) > 0 {
				fmt.Fprintf(os.Stdout, "  (%s)", strings.Join(e.Aliases, ", "))
			}
			fmt.Fprintln(os.Stdout)
		}
		return nil
	},
}

func init() {
	aliasesCmd.AddCommand(aliasesCheckCmd)
	aliasesCmd.AddCommand(aliasesListCmd)
	rootCmd.AddCommand(aliasesCmd)
}
