package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/gpufilter/filter"
)

var (
	geomWidth    int
	geomHeight   int
	geomChannels int
	geomTile     []uint
	geomRadius   uint32
	geomJSON     bool
)

var geometryCmd = &cobra.Command{
	Use:   "geometry",
	Short: "Print the launch geometry for an image",
	Long: `Prints the global size, work-group count, tile pitch and scratch size a
filter would dispatch with, without opening a device.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		local := [2]uint32{16, 16}
		switch len(geomTile) {
		case 0:
		case 1:
			local = [2]uint32{uint32(geomTile[0]), uint32(geomTile[0])}
		case 2:
			local = [2]uint32{uint32(geomTile[0]), uint32(geomTile[1])}
		default:
			return fmt.Errorf("--tile takes one or two values, got %d", len(geomTile))
		}

		g, err := filter.ComputeGeometry(geomWidth, geomHeight, geomChannels, local, geomRadius)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if geomJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				filter.Geometry
				ScratchSize uint64
			}{g, g.ScratchSize()})
		}
		fmt.Fprintf(out, "global   %d x %d\n", g.Global[0], g.Global[1])
		fmt.Fprintf(out, "local    %d x %d\n", g.Local[0], g.Local[1])
		fmt.Fprintf(out, "groups   %d x %d\n", g.Groups[0], g.Groups[1])
		fmt.Fprintf(out, "pitch    %d\n", g.Pitch)
		fmt.Fprintf(out, "scratch  %d bytes/group, %d bytes total\n", g.ScratchPerGroup, g.ScratchSize())
		return nil
	},
}

func init() {
	geometryCmd.Flags().IntVar(&geomWidth, "width", 0, "Image width (required)")
	geometryCmd.Flags().IntVar(&geomHeight, "height", 0, "Image height (required)")
	geometryCmd.Flags().IntVar(&geomChannels, "channels", 4, "Channels per pixel")
	geometryCmd.Flags().UintSliceVar(&geomTile, "tile", nil, "Work-group size, one value or width,height (default 16)")
	geometryCmd.Flags().Uint32Var(&geomRadius, "radius", 1, "Halo radius")
	geometryCmd.Flags().BoolVar(&geomJSON, "json", false, "Print JSON")

	geometryCmd.MarkFlagRequired("width")
	geometryCmd.MarkFlagRequired("height")
	rootCmd.AddCommand(geometryCmd)
}
