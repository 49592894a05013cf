package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/readiness-cli/internal/config"
	"github.com/sells-group/readiness-cli/internal/model"
	"github.com/sells-group/readiness-cli/internal/registry"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect and validate scoring methodologies",
}

var registryValidateCmd = &cobra.Command{
	Use:   "validate [file-or-dir]",
	Short: "Validate a methodology file or a directory of versions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("registry"); err != nil {
			return err
		}
		ec := cfg.Engine
		if len(args) == 1 {
			ec = engineConfigFor(args[0])
		}

		versions, err := validateRegistries(ec)
		if err != nil {
			return err
		}
		for _, v := range versions {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "methodology %s: ok (hash %s)\n", v.Version, v.Hash())
		}
		return nil
	},
}

var registryShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a methodology's weights and indicators",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("registry"); err != nil {
			return err
		}
		version, _ := cmd.Flags().GetString("methodology")
		reg, err := selectRegistry(cfg.Engine, version)
		if err != nil {
			return err
		}
		formatRegistry(os.Stdout, reg)
		return nil
	},
}

func init() {
	registryShowCmd.Flags().String("methodology", "", "methodology version (default from config)")
	registryCmd.AddCommand(registryValidateCmd)
	registryCmd.AddCommand(registryShowCmd)
	rootCmd.AddCommand(registryCmd)
}

// engineConfigFor points the registry lookup at path, a file or a directory.
func engineConfigFor(path string) config.EngineConfig {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return config.EngineConfig{RegistryDir: path}
	}
	return config.EngineConfig{RegistryPath: path}
}

// validateRegistries loads every methodology ec points at. Loading runs
// full validation, so a returned error carries every problem found.
func validateRegistries(ec config.EngineConfig) ([]*registry.Registry, error) {
	if ec.RegistryDir == "" {
		reg, err := selectRegistry(ec, "")
		if err != nil {
			return nil, err
		}
		return []*registry.Registry{reg}, nil
	}

	cat, err := registry.LoadDir(ec.RegistryDir)
	if err != nil {
		return nil, err
	}
	var out []*registry.Registry
	for _, v := range cat.Versions() {
		reg, err := cat.Get(v)
		if err != nil {
			return nil, eris.Wrapf(err, "registry: version %s", v)
		}
		out = append(out, reg)
	}
	return out, nil
}

// formatRegistry writes pillar weights and the indicator table.
func formatRegistry(out io.Writer, reg *registry.Registry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Methodology %s (hash %s)\n", reg.Version, reg.Hash())
	if reg.Description != "" {
		_, _ = fmt.Fprintln(w, reg.Description)
	}
	_, _ = fmt.Fprintf(w, "Tiers: 1 >= %.0f, 2 >= %.0f; low confidence < %.2f\n\n", reg.Tiers.Tier1Min, reg.Tiers.Tier2Min, reg.Tiers.LowConfidence)

	for _, p := range model.Pillars {
		_, _ = fmt.Fprintf(w, "%s\t%.0f%%\n", p, reg.PillarWeight(p)*100)
		for _, d := range reg.PillarIndicators(p) {
			direction := "higher"
			if !d.HigherIsBetter {
				direction = "lower"
			}
			bounds := "-"
			if d.Kind == model.ValueKindNumeric {
				bounds = fmt.Sprintf("[%g, %g]", d.Min, d.Max)
			}
			flags := ""
			if d.FrameworkAlignment {
				flags = "framework"
			}
			_, _ = fmt.Fprintf(w, "  %s\t%s\t%.2f\t%s\t%s is better\t%d fallback(s)\t%s\n",
				d.Code, d.Kind, d.Weight, bounds, direction, len(d.Fallbacks), flags)
		}
	}
	_ = w.Flush()
}
