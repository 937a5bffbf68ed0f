// Package export serializes a resolved resource into the document handed to
// external renderers: collapse groups plus one record per asset with its
// geometry, material and 16-float transform.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"urdf-asset-renderer/internal/asset"
)

// Layout is the element order of exported transforms. It is stated once in
// the document header and applies to every transform in it.
type Layout string

const (
	LayoutRow    Layout = "row"
	LayoutColumn Layout = "column"
)

// ParseLayout accepts "row" or "column"; empty means row.
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "row", "row-major":
		return LayoutRow, nil
	case "column", "col", "column-major":
		return LayoutColumn, nil
	}
	return "", fmt.Errorf("export: unknown transform layout %q (want row or column)", s)
}

// Format is the serialization of a document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// ParseFormat accepts "json", "yaml" or "yml".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return 0, fmt.Errorf("export: unknown format %q", s)
}

// FormatFor picks the format from a file extension, defaulting to JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

type Options struct {
	Layout Layout
	// IncludeGeometry inlines mesh vertices, faces and UVs.
	IncludeGeometry bool
}

type Document struct {
	Name     string  `json:"name" yaml:"name"`
	Filename string  `json:"filename" yaml:"filename"`
	Base     string  `json:"base_link" yaml:"base_link"`
	Layout   Layout  `json:"transform_layout" yaml:"transform_layout"`
	Groups   []Group `json:"groups" yaml:"groups"`
	Assets   []Asset `json:"assets" yaml:"assets"`
}

// Group is a canonical link and the links collapsed into it.
type Group struct {
	Link    string   `json:"link" yaml:"link"`
	Members []string `json:"members" yaml:"members"`
}

type Asset struct {
	Key        string      `json:"key" yaml:"key"`
	Link       string      `json:"link" yaml:"link"`
	SourceLink string      `json:"source_link" yaml:"source_link"`
	Visual     int         `json:"visual" yaml:"visual"`
	Geometry   Geometry    `json:"geometry" yaml:"geometry"`
	Material   Material    `json:"material" yaml:"material"`
	Transform  [16]float64 `json:"transform" yaml:"transform,flow"`
}

type Geometry struct {
	Type   string        `json:"type" yaml:"type"`
	Mesh   string        `json:"mesh,omitempty" yaml:"mesh,omitempty"`
	Part   string        `json:"part,omitempty" yaml:"part,omitempty"`
	Scale  *[3]float64   `json:"scale,omitempty" yaml:"scale,omitempty,flow"`
	Radius float64       `json:"radius,omitempty" yaml:"radius,omitempty"`
	Length float64       `json:"length,omitempty" yaml:"length,omitempty"`
	Size   *[3]float64   `json:"size,omitempty" yaml:"size,omitempty,flow"`
	Data   *GeometryData `json:"data,omitempty" yaml:"data,omitempty"`
}

// GeometryData is inlined mesh content.
type GeometryData struct {
	Vertices [][3]float32 `json:"vertices" yaml:"vertices,flow"`
	Faces    [][3]uint32  `json:"faces" yaml:"faces,flow"`
	UVs      [][2]float32 `json:"uvs,omitempty" yaml:"uvs,omitempty,flow"`
}

type Material struct {
	Color   [4]float64 `json:"color" yaml:"color,flow"`
	Texture string     `json:"texture,omitempty" yaml:"texture,omitempty"`
	Source  string     `json:"source" yaml:"source"`
}

// Build converts res into a document. Entries keep the resource order.
func Build(res *asset.Resource, opts Options) *Document {
	layout := opts.Layout
	if layout == "" {
		layout = LayoutRow
	}
	doc := &Document{
		Name:     res.Name,
		Filename: res.Filename,
		Base:     res.Base,
		Layout:   layout,
		Groups:   []Group{},
		Assets:   make([]Asset, 0, len(res.Entries)),
	}

	if res.Tree != nil {
		groups := res.Tree.Groups()
		for _, root := range res.Tree.Canonical() {
			doc.Groups = append(doc.Groups, Group{Link: root, Members: groups[root]})
		}
	}

	for i := range res.Entries {
		e := &res.Entries[i]
		a := Asset{
			Key:        string(e.Key),
			Link:       e.Link,
			SourceLink: e.SourceLink,
			Visual:     e.Visual,
			Geometry:   geometry(e.Geometry, opts.IncludeGeometry),
			Material: Material{
				Color:   e.Material.Color,
				Texture: e.Material.Texture,
				Source:  e.Material.Source.String(),
			},
			Transform: [16]float64(e.Pose),
		}
		if layout == LayoutColumn {
			a.Transform = e.Pose.ColumnMajor()
		}
		doc.Assets = append(doc.Assets, a)
	}
	return doc
}

func geometry(g asset.Geometry, withData bool) Geometry {
	out := Geometry{Type: g.Kind.String()}
	switch g.Kind {
	case asset.KindMesh:
		out.Mesh = g.MeshSource
		out.Part = g.Part
		scale := [3]float64(g.Scale)
		out.Scale = &scale
		if withData && g.Mesh != nil {
			out.Data = &GeometryData{
				Vertices: g.Mesh.Vertices,
				Faces:    g.Mesh.Faces,
				UVs:      g.Mesh.UVs,
			}
		}
	case asset.KindSphere:
		out.Radius = g.Radius
	case asset.KindBox:
		size := [3]float64(g.Size)
		out.Size = &size
	case asset.KindCylinder, asset.KindCapsule:
		out.Radius = g.Radius
		out.Length = g.Length
	}
	return out
}

// Write encodes doc to w.
func Write(w io.Writer, doc *Document, f Format) error {
	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("export: encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("export: encode json: %w", err)
		}
		return nil
	}
}

// WriteFile writes doc to path in the format implied by its extension.
func WriteFile(path string, doc *Document) error {
	return WriteFileAs(path, doc, FormatFor(path))
}

// WriteFileAs writes doc to path in format f, creating parent directories.
func WriteFileAs(path string, doc *Document, f Format) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := Write(out, doc, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
