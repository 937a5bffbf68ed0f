package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"urdf-asset-renderer/internal/asset"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <urdf>",
	Short: "Show collapse groups and the resolved asset table",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	res, err := asset.Load(args[0], loadOptions())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Robot: %s\nBase:  %s\n", res.Name, res.Base)

	fmt.Fprintln(out, "\nGroups:")
	groups := res.Tree.Groups()
	for _, root := range res.Tree.Canonical() {
		fmt.Fprintf(out, "  %s: %s\n", root, strings.Join(groups[root], ", "))
	}

	fmt.Fprintf(out, "\nAssets (%d):\n", res.Len())
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  KEY\tSOURCE\tGEOMETRY\tMATERIAL\tCOLOR\tTEXTURE")
	for _, e := range res.Entries {
		c := e.Material.Color
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%.2f %.2f %.2f %.2f\t%s\n",
			e.Key, e.SourceLink, describe(e.Geometry), e.Material.Source,
			c[0], c[1], c[2], c[3], e.Material.Texture)
	}
	return w.Flush()
}

func describe(g asset.Geometry) string {
	switch g.Kind {
	case asset.KindMesh:
		s := g.MeshSource
		if i := strings.LastIndexAny(s, `/\`); i >= 0 {
			s = s[i+1:]
		}
		if g.Part != "" {
			s += "#" + g.Part
		}
		return "mesh " + s
	case asset.KindSphere:
		return fmt.Sprintf("sphere r=%g", g.Radius)
	case asset.KindBox:
		return fmt.Sprintf("box %gx%gx%g", g.Size[0], g.Size[1], g.Size[2])
	default:
		return fmt.Sprintf("%s r=%g l=%g", g.Kind, g.Radius, g.Length)
	}
}
