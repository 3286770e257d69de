package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var stopsCmd = &cobra.Command{
	Use:   "stops [query]",
	Short: "Lists stops, optionally filtered by ID or name",
	Args:  cobra.RangeArgs(0, 1),
	RunE:  stops,
}

func init() {
	rootCmd.AddCommand(stopsCmd)
}

func stops(cmd *cobra.Command, args []string) error {
	query := ""
	if len(args) == 1 {
		query = strings.ToLower(args[0])
	}

	cfg, err := loadConfig(nil, false)
	if err != nil {
		return err
	}

	loader, err := buildLoader(cfg)
	if err != nil {
		return err
	}

	static, err := loader.Load(cmd.Context(), cfg.GTFSFile)
	if err != nil {
		return err
	}

	stops, err := static.Reader.Stops()
	if err != nil {
		return err
	}

	sort.Slice(stops, func(i, j int) bool {
		if stops[i].Name == stops[j].Name {
			return stops[i].ID < stops[j].ID
		}
		return stops[i].Name < stops[j].Name
	})

	for _, stop := range stops {
		if query != "" &&
			!strings.Contains(strings.ToLower(stop.ID), query) &&
			!strings.Contains(strings.ToLower(stop.Name), query) {
			continue
		}
		fmt.Printf("%s: %s\n", stop.ID, stop.Name)
	}

	return nil
}
