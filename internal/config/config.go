// Package config loads urdfview settings from an optional config file and
// URDFVIEW_* environment variables, then lets command line flags override
// them.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"urdf-asset-renderer/internal/asset"
	"urdf-asset-renderer/internal/export"
	"urdf-asset-renderer/internal/urdf"
	"urdf-asset-renderer/internal/viewmatrix"
)

const (
	EnvPrefix = "URDFVIEW"
	fileName  = "urdfview"
)

// Config holds resolution, export and render settings.
type Config struct {
	// Resolution
	CollapseFixedJoints        bool     `mapstructure:"collapse_fixed_joints"`
	ReplaceCylinderWithCapsule bool     `mapstructure:"replace_cylinder_with_capsule"`
	UseMeshMaterials           bool     `mapstructure:"use_mesh_materials"`
	ValidateSchema             bool     `mapstructure:"validate_schema"`
	BaseLink                   string   `mapstructure:"base_link"`
	PackagePaths               []string `mapstructure:"package_paths"`

	// Export
	TransformLayout string `mapstructure:"transform_layout"`

	// Render settings
	OutputDir   string  `mapstructure:"output_dir"`
	RenderSize  int     `mapstructure:"render_size"`
	Supersample int     `mapstructure:"supersample"`
	Workers     int     `mapstructure:"workers"`
	Azimuth     float64 `mapstructure:"azimuth"`
	Elevation   float64 `mapstructure:"elevation"`
	Perspective bool    `mapstructure:"perspective"`

	LogLevel string `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("collapse_fixed_joints", true)
	v.SetDefault("replace_cylinder_with_capsule", false)
	v.SetDefault("use_mesh_materials", false)
	v.SetDefault("validate_schema", false)
	v.SetDefault("base_link", "")
	v.SetDefault("package_paths", []string{})
	v.SetDefault("transform_layout", string(export.LayoutRow))
	v.SetDefault("output_dir", "renders")
	v.SetDefault("render_size", 256)
	v.SetDefault("supersample", 2)
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("azimuth", 45.0)
	v.SetDefault("elevation", 25.0)
	v.SetDefault("perspective", false)
	v.SetDefault("log_level", "info")
}

// Load reads settings. With a non-empty path that file must exist; with an
// empty path urdfview.{yaml,json,toml} is looked up in the working directory
// and ~/.config/urdfview, and a missing file is not an error. Environment
// variables (URDFVIEW_RENDER_SIZE, ...) override the file.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		p, err := homedir.Expand(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		v.SetConfigFile(p)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", p, err)
		}
	} else {
		v.SetConfigName(fileName)
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", fileName))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// Flags holds CLI flag values that override config file settings. Nil
// booleans and zero values leave the loaded setting alone.
type Flags struct {
	Collapse      *bool
	Capsules      *bool
	MeshMaterials *bool
	Validate      *bool
	Perspective   *bool
	BaseLink      string
	PackagePaths  []string
	Layout        string
	OutputDir     string
	Size          int
	Supersample   int
	Workers       int
	Azimuth       *float64
	Elevation     *float64
	LogLevel      string
}

// Resolve applies flags, fills defaults for unusable values and expands ~
// in paths.
func (c *Config) Resolve(flags Flags) {
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setBool(&c.CollapseFixedJoints, flags.Collapse)
	setBool(&c.ReplaceCylinderWithCapsule, flags.Capsules)
	setBool(&c.UseMeshMaterials, flags.MeshMaterials)
	setBool(&c.ValidateSchema, flags.Validate)
	setBool(&c.Perspective, flags.Perspective)

	if flags.BaseLink != "" {
		c.BaseLink = flags.BaseLink
	}
	if len(flags.PackagePaths) > 0 {
		c.PackagePaths = append(c.PackagePaths, flags.PackagePaths...)
	}
	if flags.Layout != "" {
		c.TransformLayout = flags.Layout
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Size > 0 {
		c.RenderSize = flags.Size
	}
	if flags.Supersample > 0 {
		c.Supersample = flags.Supersample
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.Azimuth != nil {
		c.Azimuth = *flags.Azimuth
	}
	if flags.Elevation != nil {
		c.Elevation = *flags.Elevation
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}

	c.OutputDir = expand(c.OutputDir)
	for i, p := range c.PackagePaths {
		c.PackagePaths[i] = expand(p)
	}

	// Defaults for render settings
	if c.RenderSize <= 0 {
		c.RenderSize = 256
	}
	if c.Supersample <= 0 {
		c.Supersample = 2
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
}

func expand(p string) string {
	if e, err := homedir.Expand(p); err == nil {
		return e
	}
	return p
}

// Layout returns the parsed transform layout.
func (c *Config) Layout() (export.Layout, error) {
	return export.ParseLayout(c.TransformLayout)
}

// URDFOptions returns the parser settings.
func (c *Config) URDFOptions() urdf.Options {
	return urdf.Options{
		PackagePaths: c.PackagePaths,
		BaseLink:     c.BaseLink,
		Validate:     c.ValidateSchema,
	}
}

// LoadOptions returns parser and resolver settings for asset.Load.
func (c *Config) LoadOptions() asset.LoadOptions {
	return asset.LoadOptions{
		URDF: c.URDFOptions(),
		Options: asset.Options{
			CollapseFixedJoints:        c.CollapseFixedJoints,
			ReplaceCylinderWithCapsule: c.ReplaceCylinderWithCapsule,
			UseMeshMaterials:           c.UseMeshMaterials,
		},
	}
}

// Camera returns the preview camera.
func (c *Config) Camera() viewmatrix.Camera {
	return viewmatrix.Camera{
		Azimuth:     c.Azimuth,
		Elevation:   c.Elevation,
		Perspective: c.Perspective,
		FOV:         viewmatrix.DefaultFOV,
	}
}
