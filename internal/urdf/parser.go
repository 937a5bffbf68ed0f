package urdf

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"urdf-asset-renderer/internal/mathutil"
)

// Options controls parsing and filename resolution.
type Options struct {
	// PackagePaths are searched for package:// references.
	PackagePaths []string
	// BaseLink overrides base link detection.
	BaseLink string
	// Validate checks the document against the embedded URDF schema first.
	Validate bool
}

// xmlRobot matches the URDF schema.
type xmlRobot struct {
	XMLName   xml.Name      `xml:"robot"`
	Name      string        `xml:"name,attr"`
	Links     []xmlLink     `xml:"link"`
	Joints    []xmlJoint    `xml:"joint"`
	Materials []xmlMaterial `xml:"material"`
}

type xmlLink struct {
	Name    string      `xml:"name,attr"`
	Visuals []xmlVisual `xml:"visual"`
}

type xmlVisual struct {
	Name     string       `xml:"name,attr"`
	Origin   *xmlOrigin   `xml:"origin"`
	Geometry xmlGeometry  `xml:"geometry"`
	Material *xmlMaterial `xml:"material"`
}

type xmlOrigin struct {
	XYZ string `xml:"xyz,attr"`
	RPY string `xml:"rpy,attr"`
}

type xmlGeometry struct {
	Box *struct {
		Size string `xml:"size,attr"`
	} `xml:"box"`
	Sphere *struct {
		Radius string `xml:"radius,attr"`
	} `xml:"sphere"`
	Cylinder *xmlCylinder `xml:"cylinder"`
	Capsule  *xmlCylinder `xml:"capsule"`
	Mesh     *struct {
		Filename string `xml:"filename,attr"`
		Scale    string `xml:"scale,attr"`
	} `xml:"mesh"`
	Other []struct {
		XMLName xml.Name
	} `xml:",any"`
}

type xmlCylinder struct {
	Radius string `xml:"radius,attr"`
	Length string `xml:"length,attr"`
}

type xmlMaterial struct {
	Name  string `xml:"name,attr"`
	Color *struct {
		RGBA string `xml:"rgba,attr"`
	} `xml:"color"`
	Texture *struct {
		Filename string `xml:"filename,attr"`
	} `xml:"texture"`
}

type xmlJoint struct {
	Name   string     `xml:"name,attr"`
	Type   string     `xml:"type,attr"`
	Origin *xmlOrigin `xml:"origin"`
	Parent struct {
		Link string `xml:"link,attr"`
	} `xml:"parent"`
	Child struct {
		Link string `xml:"link,attr"`
	} `xml:"child"`
}

// ParseFile reads a URDF file. Relative mesh and texture paths resolve
// against the file's directory.
func ParseFile(path string, opts Options) (*Robot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("urdf: read %s: %w", path, err)
	}
	robot, err := parse(raw, filepath.Dir(path), opts)
	if err != nil {
		return nil, fmt.Errorf("urdf: parse %s: %w", path, err)
	}
	robot.Filename = path
	return robot, nil
}

// Parse decodes a URDF document from r. Relative paths resolve against the
// working directory.
func Parse(r io.Reader, opts Options) (*Robot, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("urdf: read: %w", err)
	}
	return parse(raw, ".", opts)
}

func parse(raw []byte, baseDir string, opts Options) (*Robot, error) {
	if opts.Validate {
		if err := ValidateSchema(bytes.NewReader(raw)); err != nil {
			return nil, err
		}
	}

	var doc xmlRobot
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	res := resolver{dir: baseDir, packagePaths: opts.PackagePaths}
	robot := &Robot{
		Name:      doc.Name,
		Materials: make(map[string]Material, len(doc.Materials)),
		baseLink:  opts.BaseLink,
	}

	for _, xm := range doc.Materials {
		m, err := convertMaterial(xm, res)
		if err != nil {
			return nil, err
		}
		if m.Name != "" {
			robot.Materials[m.Name] = m
		}
	}

	seen := make(map[string]bool, len(doc.Links))
	for _, xl := range doc.Links {
		if xl.Name == "" {
			return nil, fmt.Errorf("link without name: %w", ErrInvalid)
		}
		if seen[xl.Name] {
			return nil, fmt.Errorf("duplicate link %q: %w", xl.Name, ErrInvalid)
		}
		seen[xl.Name] = true

		link := Link{Name: xl.Name}
		for i, xv := range xl.Visuals {
			v, err := convertVisual(xv, res)
			if err != nil {
				return nil, fmt.Errorf("link %q visual %d: %w", xl.Name, i, err)
			}
			link.Visuals = append(link.Visuals, v)
		}
		robot.Links = append(robot.Links, link)
	}

	for _, xj := range doc.Joints {
		if xj.Parent.Link == "" || xj.Child.Link == "" {
			return nil, fmt.Errorf("joint %q missing parent or child: %w", xj.Name, ErrInvalid)
		}
		origin, err := convertOrigin(xj.Origin)
		if err != nil {
			return nil, fmt.Errorf("joint %q: %w", xj.Name, err)
		}
		robot.Joints = append(robot.Joints, Joint{
			Name:   xj.Name,
			Type:   xj.Type,
			Parent: xj.Parent.Link,
			Child:  xj.Child.Link,
			Origin: origin,
		})
	}

	return robot, nil
}

func convertVisual(xv xmlVisual, res resolver) (Visual, error) {
	origin, err := convertOrigin(xv.Origin)
	if err != nil {
		return Visual{}, err
	}
	geom, err := convertGeometry(xv.Geometry, res)
	if err != nil {
		return Visual{}, err
	}
	v := Visual{Name: xv.Name, Origin: origin, Geometry: geom}
	if xv.Material != nil {
		m, err := convertMaterial(*xv.Material, res)
		if err != nil {
			return Visual{}, err
		}
		v.Material = &m
	}
	return v, nil
}

func convertGeometry(xg xmlGeometry, res resolver) (Geometry, error) {
	switch {
	case xg.Mesh != nil:
		scale := mathutil.Vec3{1, 1, 1}
		if s := strings.TrimSpace(xg.Mesh.Scale); s != "" {
			vals, err := parseFloats(s)
			if err != nil {
				return Geometry{}, fmt.Errorf("mesh scale: %w", err)
			}
			switch len(vals) {
			case 1:
				scale = mathutil.Vec3{vals[0], vals[0], vals[0]}
			case 3:
				scale = mathutil.Vec3{vals[0], vals[1], vals[2]}
			default:
				return Geometry{}, fmt.Errorf("mesh scale %q: %w", s, ErrInvalid)
			}
		}
		if xg.Mesh.Filename == "" {
			return Geometry{}, fmt.Errorf("mesh without filename: %w", ErrInvalid)
		}
		return Geometry{Kind: GeometryMesh, Mesh: &Mesh{
			Filename: xg.Mesh.Filename,
			Path:     res.resolve(xg.Mesh.Filename),
			Scale:    scale,
		}}, nil
	case xg.Sphere != nil:
		r, err := parseFloat(xg.Sphere.Radius, "sphere radius")
		if err != nil {
			return Geometry{}, err
		}
		return Geometry{Kind: GeometrySphere, Radius: r}, nil
	case xg.Box != nil:
		size, err := parseVec3(xg.Box.Size, "box size")
		if err != nil {
			return Geometry{}, err
		}
		return Geometry{Kind: GeometryBox, Size: size}, nil
	case xg.Cylinder != nil, xg.Capsule != nil:
		kind, c := GeometryCylinder, xg.Cylinder
		if c == nil {
			kind, c = GeometryCapsule, xg.Capsule
		}
		r, err := parseFloat(c.Radius, kind.String()+" radius")
		if err != nil {
			return Geometry{}, err
		}
		l, err := parseFloat(c.Length, kind.String()+" length")
		if err != nil {
			return Geometry{}, err
		}
		return Geometry{Kind: kind, Radius: r, Length: l}, nil
	case len(xg.Other) > 0:
		// Kept so the resolver can reject it explicitly.
		return Geometry{Kind: GeometryUnknown, Tag: xg.Other[0].XMLName.Local}, nil
	}
	return Geometry{}, fmt.Errorf("empty geometry: %w", ErrInvalid)
}

func convertMaterial(xm xmlMaterial, res resolver) (Material, error) {
	m := Material{Name: xm.Name}
	if xm.Color != nil {
		vals, err := parseFloats(xm.Color.RGBA)
		if err != nil {
			return Material{}, fmt.Errorf("material %q rgba: %w", xm.Name, err)
		}
		if len(vals) != 4 {
			return Material{}, fmt.Errorf("material %q rgba %q: %w", xm.Name, xm.Color.RGBA, ErrInvalid)
		}
		c := Color{vals[0], vals[1], vals[2], vals[3]}
		m.Color = &c
	}
	if xm.Texture != nil && xm.Texture.Filename != "" {
		m.Texture = res.resolve(xm.Texture.Filename)
	}
	return m, nil
}

func convertOrigin(o *xmlOrigin) (mathutil.Mat4, error) {
	if o == nil {
		return mathutil.Mat4Identity(), nil
	}
	xyz, err := parseVec3(o.XYZ, "origin xyz")
	if err != nil {
		return mathutil.Mat4{}, err
	}
	rpy, err := parseVec3(o.RPY, "origin rpy")
	if err != nil {
		return mathutil.Mat4{}, err
	}
	return mathutil.PoseFromXYZRPY(xyz, rpy), nil
}

// parseVec3 parses "x y z"; an empty attribute is the zero vector.
func parseVec3(s, what string) (mathutil.Vec3, error) {
	if strings.TrimSpace(s) == "" {
		return mathutil.Vec3{}, nil
	}
	vals, err := parseFloats(s)
	if err != nil {
		return mathutil.Vec3{}, fmt.Errorf("%s: %w", what, err)
	}
	if len(vals) != 3 {
		return mathutil.Vec3{}, fmt.Errorf("%s %q: want 3 values: %w", what, s, ErrInvalid)
	}
	return mathutil.Vec3{vals[0], vals[1], vals[2]}, nil
}

func parseFloat(s, what string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", what, err)
	}
	return v, nil
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.Fields(s)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
