// root.go cobra root command code
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/corvidlabs/wakewing/internal/buildinfo"
	"github.com/corvidlabs/wakewing/internal/conf"
	"github.com/corvidlabs/wakewing/internal/logging"
	"github.com/corvidlabs/wakewing/internal/orchestrator"
	"github.com/corvidlabs/wakewing/internal/pipeline"
)

var (
	flagPreamp  float32
	flagDevice  string
	flagOnnxLib string
)

// RootCommand creates and returns the single root command: this engine has
// one mode of operation (listen for wakewords against a config file), so
// unlike a multi-tool CLI there is nothing to dispatch to subcommands.
func RootCommand(build *buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "wakewing <config_file>",
		Short:   "Continuous wake-word and voice-activity detection engine",
		Version: build.GetVersion(),
		Args:    cobra.ExactArgs(1),
		RunE:    runWakewing,
	}
	rootCmd.SetVersionTemplate(fmt.Sprintf("wakewing %s (built %s)\n", build.GetVersion(), build.GetBuildDate()))

	rootCmd.Flags().Float32Var(&flagPreamp, "preamp", conf.DefaultPreamp, "Capture gain multiplier applied after int16-to-float conversion")
	rootCmd.Flags().StringVar(&flagDevice, "device", "", "Capture device id passed to the audio source (e.g. an ALSA device name)")
	rootCmd.Flags().StringVar(&flagOnnxLib, "onnx-lib", "", "Path to the ONNX Runtime shared library (leave empty to use the system default)")

	return rootCmd
}

func runWakewing(cmd *cobra.Command, args []string) error {
	settings, err := conf.Load(args[0])
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	settings.Capture.Preamp = flagPreamp
	settings.Capture.Device = flagDevice

	logging.Init()
	log := logging.ForService("orchestrator")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	source, err := captureSource(ctx, settings)
	if err != nil {
		return fmt.Errorf("opening capture source: %w", err)
	}

	registry := prometheus.NewRegistry()
	o, err := orchestrator.New(ctx, settings, source, flagOnnxLib, registry, log)
	if err != nil {
		return fmt.Errorf("constructing pipeline: %w", err)
	}

	log.Info("listening", "config", args[0], "device", settings.Capture.Device, "preamp", settings.Capture.Preamp)
	return o.Run(ctx)
}

func captureSource(ctx context.Context, settings *conf.Settings) (pipeline.Source, error) {
	if settings.Capture.Device == "" {
		return pipeline.ArecordSource(ctx, "default")
	}
	return pipeline.ArecordSource(ctx, settings.Capture.Device)
}
