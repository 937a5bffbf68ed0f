package meshio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"urdf-asset-renderer/internal/mathutil"
)

// objGroup collects the faces of one object drawn with one material.
type objGroup struct {
	object   string
	material string
	faces    [][][2]int // per face: (vertex, uv) index pairs, uv -1 when absent
}

// objDecoder holds the state of one Wavefront OBJ decode.
type objDecoder struct {
	dir      string
	line     int
	verts    [][3]float32
	uvs      [][2]float32
	matlibs  []string
	groups   []*objGroup
	object   string
	material string
	current  *objGroup
}

func loadOBJ(path string) ([]Part, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("meshio: open %s: %w", path, err)
	}
	defer f.Close()

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	dec := &objDecoder{dir: filepath.Dir(path), object: stem}
	if err := dec.decode(f); err != nil {
		return nil, fmt.Errorf("meshio: obj %s line %d: %w", path, dec.line, err)
	}

	mats := make(map[string]*Material)
	for _, lib := range dec.matlibs {
		if err := readMTL(filepath.Join(dec.dir, lib), mats); err != nil {
			return nil, err
		}
	}
	return dec.parts(mats), nil
}

func (d *objDecoder) decode(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		d.line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		var err error
		switch fields[0] {
		case "v":
			var v mathutil.Vec3
			v, err = parseVec(fields[1:], 3)
			d.verts = append(d.verts, [3]float32{float32(v[0]), float32(v[1]), float32(v[2])})
		case "vt":
			var v mathutil.Vec3
			// v and w are optional.
			v, err = parseVec(fields[1:], 1)
			d.uvs = append(d.uvs, [2]float32{float32(v[0]), float32(1 - v[1])})
		case "f":
			err = d.parseFace(fields[1:])
		case "o", "g":
			// Groups are treated the same as objects.
			if len(fields) > 1 {
				d.object = strings.Join(fields[1:], " ")
				d.current = nil
			}
		case "usemtl":
			if len(fields) > 1 {
				d.material = fields[1]
				d.current = nil
			}
		case "mtllib":
			d.matlibs = append(d.matlibs, fields[1:]...)
		}
		if err != nil {
			return err
		}
	}
	return sc.Err()
}

// parseFace parses f v1[/vt1][/vn1] v2[/vt2][/vn2] ...
func (d *objDecoder) parseFace(fields []string) error {
	if len(fields) < 3 {
		return fmt.Errorf("face with %d vertices", len(fields))
	}
	face := make([][2]int, len(fields))
	for i, f := range fields {
		parts := strings.Split(f, "/")
		vi, err := objIndex(parts[0], len(d.verts))
		if err != nil {
			return err
		}
		ti := -1
		if len(parts) > 1 && parts[1] != "" {
			if ti, err = objIndex(parts[1], len(d.uvs)); err != nil {
				return err
			}
		}
		face[i] = [2]int{vi, ti}
	}
	if d.current == nil {
		d.current = d.group(d.object, d.material)
	}
	d.current.faces = append(d.current.faces, face)
	return nil
}

func (d *objDecoder) group(object, material string) *objGroup {
	for _, g := range d.groups {
		if g.object == object && g.material == material {
			return g
		}
	}
	g := &objGroup{object: object, material: material}
	d.groups = append(d.groups, g)
	return g
}

// objIndex converts a 1-based (or negative, relative) OBJ index to 0-based.
func objIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	switch {
	case i > 0 && i <= n:
		return i - 1, nil
	case i < 0 && -i <= n:
		return n + i, nil
	}
	return 0, fmt.Errorf("index %d out of range (have %d)", i, n)
}

// parts builds one Part per object/material group with faces, fan
// triangulating polygons.
func (d *objDecoder) parts(mats map[string]*Material) []Part {
	perObject := make(map[string]int)
	for _, g := range d.groups {
		if len(g.faces) > 0 {
			perObject[g.object]++
		}
	}

	var out []Part
	seen := make(map[string]int)
	for _, g := range d.groups {
		if len(g.faces) == 0 {
			continue
		}
		name := g.object
		if perObject[g.object] > 1 {
			name = fmt.Sprintf("%s_%d", g.object, seen[g.object])
			seen[g.object]++
		}

		var m Mesh
		remap := make(map[[2]int]uint32)
		index := func(k [2]int) uint32 {
			if idx, ok := remap[k]; ok {
				return idx
			}
			idx := uint32(len(m.Vertices))
			m.Vertices = append(m.Vertices, d.verts[k[0]])
			if k[1] >= 0 {
				m.UVs = append(m.UVs, d.uvs[k[1]])
			} else {
				m.UVs = append(m.UVs, [2]float32{})
			}
			remap[k] = idx
			return idx
		}
		hasUV := false
		for _, face := range g.faces {
			for i := 1; i+1 < len(face); i++ {
				m.Faces = append(m.Faces, [3]uint32{index(face[0]), index(face[i]), index(face[i+1])})
			}
			for _, k := range face {
				hasUV = hasUV || k[1] >= 0
			}
		}
		if !hasUV {
			m.UVs = nil
		}

		out = append(out, Part{
			Name:     name,
			Mesh:     m,
			Local:    mathutil.Mat4Identity(),
			Material: mats[g.material],
		})
	}
	return out
}

// readMTL adds the materials of a .mtl library to mats. A missing library
// leaves the parts without native material.
func readMTL(path string, mats map[string]*Material) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("meshio: open %s: %w", path, err)
	}
	defer f.Close()

	var cur *Material
	dir := filepath.Dir(path)
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if fields[0] == "newmtl" {
			if len(fields) < 2 {
				return fmt.Errorf("meshio: mtl %s line %d: newmtl without name", path, line)
			}
			cur = &Material{}
			mats[fields[1]] = cur
			continue
		}
		if cur == nil {
			continue
		}
		switch fields[0] {
		case "Kd":
			v, err := parseVec(fields[1:], 3)
			if err != nil {
				return fmt.Errorf("meshio: mtl %s line %d: %w", path, line, err)
			}
			alpha := 1.0
			if cur.Color != nil {
				alpha = cur.Color[3]
			}
			cur.Color = &[4]float64{v[0], v[1], v[2], alpha}
		case "d", "Tr":
			v, err := parseVec(fields[1:], 1)
			if err != nil {
				return fmt.Errorf("meshio: mtl %s line %d: %w", path, line, err)
			}
			alpha := v[0]
			if fields[0] == "Tr" {
				alpha = 1 - alpha
			}
			if cur.Color == nil {
				cur.Color = &[4]float64{1, 1, 1, alpha}
			} else {
				cur.Color[3] = alpha
			}
		case "map_Kd":
			if len(fields) > 1 {
				cur.Texture = filepath.Join(dir, filepath.FromSlash(fields[len(fields)-1]))
			}
		}
	}
	return sc.Err()
}

// parseVec reads up to three leading values, at least least of them.
// Missing values are zero.
func parseVec(fields []string, least int) (mathutil.Vec3, error) {
	var v mathutil.Vec3
	if len(fields) < least {
		return v, fmt.Errorf("want %d values, got %d", least, len(fields))
	}
	for i := 0; i < len(fields) && i < len(v); i++ {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return v, err
		}
		v[i] = f
	}
	return v, nil
}
