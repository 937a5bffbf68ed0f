// Package skeleton resolves the kinematic tree of a robot description:
// which links fold into a canonical group through fixed joints, and the
// rigid transform from each link to its group root.
package skeleton

import (
	"errors"
	"fmt"
	"sort"

	"urdf-asset-renderer/internal/mathutil"
	"urdf-asset-renderer/internal/urdf"
)

// ErrMalformedTree is returned when the joints do not form a tree rooted at
// the base link.
var ErrMalformedTree = errors.New("skeleton: malformed kinematic tree")

// Tree holds the collapse result. Read-only after Collapse returns.
type Tree struct {
	Base string
	// Roots maps every link to its canonical (collapse-root) link.
	Roots map[string]string
	// Poses maps every link to the transform from its frame to its root's frame.
	Poses map[string]mathutil.Mat4

	order []string // links in resolution order, base first
}

// Collapse resolves joints parent-before-child starting at base. With
// enabled, links reached through a fixed joint join their parent's group;
// otherwise every link is its own root with identity pose.
//
// Joints may be listed in any order. A joint whose parent is never reached,
// a link with two parents, or a cycle back into resolved links fails the
// whole call.
func Collapse(joints []urdf.Joint, base string, enabled bool) (*Tree, error) {
	t := &Tree{
		Base:  base,
		Roots: map[string]string{base: base},
		Poses: map[string]mathutil.Mat4{base: mathutil.Mat4Identity()},
		order: []string{base},
	}

	err := walk(joints, base, func(j urdf.Joint) {
		if enabled && j.IsFixed() {
			t.Roots[j.Child] = t.Roots[j.Parent]
			t.Poses[j.Child] = mathutil.Mat4Mul(t.Poses[j.Parent], j.Origin)
		} else {
			t.Roots[j.Child] = j.Child
			t.Poses[j.Child] = mathutil.Mat4Identity()
		}
		t.order = append(t.order, j.Child)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// walk visits every joint exactly once, in an order where a joint's parent
// has already been reached from base. It is a worklist over resolved links:
// popping a link resolves all of its outgoing joints.
func walk(joints []urdf.Joint, base string, visit func(urdf.Joint)) error {
	outgoing := make(map[string][]int, len(joints))
	parentOf := make(map[string]string, len(joints))
	for i, j := range joints {
		if j.Child == base {
			return fmt.Errorf("%w: joint %q has base link %q as child", ErrMalformedTree, j.Name, base)
		}
		if p, dup := parentOf[j.Child]; dup {
			return fmt.Errorf("%w: link %q has two parents (%q, %q)", ErrMalformedTree, j.Child, p, j.Parent)
		}
		parentOf[j.Child] = j.Parent
		outgoing[j.Parent] = append(outgoing[j.Parent], i)
	}

	resolved := make([]bool, len(joints))
	n := 0
	queue := []string{base}
	for len(queue) > 0 {
		link := queue[0]
		queue = queue[1:]
		for _, ji := range outgoing[link] {
			visit(joints[ji])
			resolved[ji] = true
			n++
			queue = append(queue, joints[ji].Child)
		}
	}

	if n < len(joints) {
		var names []string
		for i, ok := range resolved {
			if !ok {
				names = append(names, fmt.Sprintf("%s (%s -> %s)", joints[i].Name, joints[i].Parent, joints[i].Child))
			}
		}
		return fmt.Errorf("%w: %d joint(s) unreachable from %q: %v", ErrMalformedTree, len(names), base, names)
	}
	return nil
}

// Root returns the canonical link of name.
func (t *Tree) Root(name string) (string, bool) {
	r, ok := t.Roots[name]
	return r, ok
}

// Pose returns the transform from name's frame to its root's frame.
func (t *Tree) Pose(name string) (mathutil.Mat4, bool) {
	p, ok := t.Poses[name]
	return p, ok
}

// Links returns all resolved links, base first, parents before children.
func (t *Tree) Links() []string {
	return append([]string(nil), t.order...)
}

// Groups maps each canonical link to its members in resolution order
// (the canonical link itself first).
func (t *Tree) Groups() map[string][]string {
	g := make(map[string][]string)
	for _, l := range t.order {
		r := t.Roots[l]
		g[r] = append(g[r], l)
	}
	return g
}

// Canonical returns the sorted canonical link names.
func (t *Tree) Canonical() []string {
	var out []string
	for l, r := range t.Roots {
		if l == r {
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}
