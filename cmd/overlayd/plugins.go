package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"overlayd/internal/registry"
	"overlayd/pkg/types"
)

func buildPluginsCmd(rf *rootFlags) *cobra.Command {
	plugins := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect installed plugin packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("plugins requires a subcommand: list")
		},
	}
	var (
		role   string
		asJSON bool
	)
	list := &cobra.Command{
		Use:     "list",
		Short:   "List packages whose manifest passed its role's contract",
		Example: "  overlayd plugins list\n  overlayd plugins list --role controller --json",
		RunE: func(cmd *cobra.Command, args []string) error {
			roles := types.Roles
			if role != "" {
				r, ok := types.ParseRole(strings.ToLower(role))
				if !ok {
					return fmt.Errorf("unknown role: %s", role)
				}
				roles = []types.PluginRole{r}
			}
			cfg, err := rf.load(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			res, err := newResolver(cfg, log)
			if err != nil {
				return err
			}
			recs := []types.PluginRecord{}
			for _, r := range roles {
				recs = append(recs, res.Registry().Records(r)...)
			}
			if asJSON {
				return writeIndented(cmd.OutOrStdout(), recs)
			}
			return writePluginTable(cmd.OutOrStdout(), recs)
		},
	}
	list.Flags().StringVar(&role, "role", "", "Only list one role: view|controller|application")
	list.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	plugins.AddCommand(list)
	return plugins
}

func buildResolveCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "resolve <role> <id>",
		Short:   "Print the directory a plugin id resolves to",
		Example: "  overlayd resolve controller mod-file-writer\n  overlayd resolve application Skyrim",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, ok := types.ParseRole(strings.ToLower(args[0]))
			if !ok {
				return fmt.Errorf("unknown role: %s", args[0])
			}
			cfg, err := rf.load(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			res, err := newResolver(cfg, log)
			if err != nil {
				return err
			}
			p, ok := res.Resolve(role, args[1])
			if !ok {
				return fmt.Errorf("%s not found: %s", role, args[1])
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), p)
			return err
		},
	}
}

func buildAppsCmd(rf *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "apps",
		Short: "List application profiles from the search roots and installed packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rf.load(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			res, err := newResolver(cfg, log)
			if err != nil {
				return err
			}
			for _, name := range res.ListApplicationNames() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func writePluginTable(w io.Writer, recs []types.PluginRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROLE\tID\tENTRY")
	for _, rec := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", rec.Role, rec.ID, registry.EntryDir(rec))
	}
	return tw.Flush()
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
