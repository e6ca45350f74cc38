package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/gpufilter"
	"github.com/gogpu/gpufilter/backend"
	_ "github.com/gogpu/gpufilter/backend/soft"
	"github.com/gogpu/gpufilter/gpucore"
)

var (
	logLevel    string
	backendName string
	logger      *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gpufilter",
	Short: "Run GPU compute filters over images",
	Long: `gpufilter uploads an image to a compute device, runs a chain of filter
kernels over it and writes the result. Without a GPU it falls back to the
CPU reference device.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := gpufilter.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		gpufilter.SetLogger(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "", "Device backend (empty picks the best available)")
}

// openDevice opens the backend named by --backend, or the best available.
func openDevice() (gpucore.GPUAdapter, error) {
	if backendName == "" {
		return backend.OpenDefault()
	}
	return backend.Open(backendName)
}
