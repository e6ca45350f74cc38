// Command gpufilter runs filter kernels over image files.
//
// Usage:
//
//	gpufilter apply --in photo.png --out edges.png --filter gaussian:1.2 --filter sobel
//	gpufilter list
//	gpufilter geometry --width 1000 --height 600 --tile 16 --radius 1
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
