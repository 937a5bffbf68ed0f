// Package cli implements the urdfview command tree.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"urdf-asset-renderer/internal/asset"
	"urdf-asset-renderer/internal/config"
	"urdf-asset-renderer/internal/logx"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

// Persistent flag values.
var (
	configPath    string
	logLevel      string
	baseLink      string
	packagePaths  []string
	collapse      bool
	capsules      bool
	meshMaterials bool
	validate      bool
)

// Loaded in PersistentPreRunE.
var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "urdfview",
	Short: "Resolve URDF robot descriptions into renderable assets",
	Long: `urdfview collapses links joined by fixed joints, resolves every visual into a
keyed asset with geometry, material and pose, and exports or renders the result.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default: ./urdfview.yaml or ~/.config/urdfview/urdfview.yaml)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&baseLink, "base", "", "Base link (default: the only link that is never a joint child)")
	pf.StringSliceVar(&packagePaths, "package-path", nil, "Directory searched for package:// references (repeatable)")
	pf.BoolVar(&collapse, "collapse", true, "Collapse links joined by fixed joints")
	pf.BoolVar(&capsules, "capsules", false, "Emit cylinders as capsules")
	pf.BoolVar(&meshMaterials, "mesh-materials", false, "Prefer mesh file materials over named document materials")
	pf.BoolVar(&validate, "validate", false, "Validate the document against the URDF schema")
}

// Execute runs the root command with build info injected via ldflags.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date
	err := rootCmd.Execute()
	if err != nil {
		rootCmd.PrintErrln("Error:", err)
	}
	return err
}

// changedBool returns the flag value when it was set on the command line.
func changedBool(cmd *cobra.Command, name string, v bool) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

func changedFloat(cmd *cobra.Command, name string, v float64) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}

func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	flags := config.Flags{
		Collapse:      changedBool(cmd, "collapse", collapse),
		Capsules:      changedBool(cmd, "capsules", capsules),
		MeshMaterials: changedBool(cmd, "mesh-materials", meshMaterials),
		Validate:      changedBool(cmd, "validate", validate),
		BaseLink:      baseLink,
		PackagePaths:  packagePaths,
		LogLevel:      logLevel,
	}
	switch cmd.Name() {
	case "render":
		renderFlags(cmd, &flags)
	case "export":
		flags.Layout = exportLayout
	}
	cfg.Resolve(flags)

	logger, err = logx.New(cmd.ErrOrStderr(), cfg.LogLevel)
	return err
}

// loadOptions returns parser and resolver settings with the command logger.
func loadOptions() asset.LoadOptions {
	opts := cfg.LoadOptions()
	opts.Logger = logger
	return opts
}
