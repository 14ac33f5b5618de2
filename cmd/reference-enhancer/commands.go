package main

import (
	"fmt"
	"io"
	"math"
	"sort"

	"reference-enhancer/internal/app"
	"reference-enhancer/internal/config"
	"reference-enhancer/internal/logger"
	"reference-enhancer/internal/shutdown"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
	human      bool
}

type enhanceOptions struct {
	reference string
	target    string
	output    string
	resize    string
	quality   int
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          app.AppName,
		Short:        "Match an image's noise and sharpness to a reference image",
		Version:      app.AppVersion,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error or off")
	root.PersistentFlags().BoolVar(&opts.human, "human", false, "Human-readable log output instead of JSON")

	root.AddCommand(newEnhanceCommand(opts))
	root.AddCommand(newMeasureCommand(opts))

	return root
}

func newEnhanceCommand(root *rootOptions) *cobra.Command {
	opts := &enhanceOptions{}

	cmd := &cobra.Command{
		Use:   "enhance",
		Short: "Median-blur and sharpen the target towards the reference",
		Long: `Measures the variance of the Laplacian of both images, picks a median blur
kernel size from the noise difference and a sharpening strength from the
sharpness difference, applies both to the target and writes the result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("resize") {
				size, err := config.ParseSize(opts.resize)
				if err != nil {
					return err
				}
				cfg.Resize = size
			}
			if cmd.Flags().Changed("quality") {
				cfg.Output.JPEGQuality = opts.quality
			}

			application, manager, err := start(cmd, cfg)
			if err != nil {
				return err
			}
			defer manager.Shutdown()

			report, err := application.Enhance(manager.Context(), app.EnhanceRequest{
				ReferencePath: opts.reference,
				TargetPath:    opts.target,
				OutputPath:    opts.output,
			})
			if err != nil {
				return err
			}

			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.reference, "reference", "r", "", "Reference image (required)")
	cmd.Flags().StringVarP(&opts.target, "target", "t", "", "Image to enhance (required)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Where to write the enhanced image (required)")
	cmd.Flags().StringVar(&opts.resize, "resize", "", "Resize both images to WIDTHxHEIGHT before measuring")
	cmd.Flags().IntVar(&opts.quality, "quality", 95, "JPEG quality for .jpg output")
	cmd.MarkFlagRequired("reference")
	cmd.MarkFlagRequired("target")
	cmd.MarkFlagRequired("output")

	return cmd
}

func newMeasureCommand(root *rootOptions) *cobra.Command {
	var resize string

	cmd := &cobra.Command{
		Use:   "measure IMAGE...",
		Short: "Print the noise and sharpness readings of each image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("resize") {
				size, err := config.ParseSize(resize)
				if err != nil {
					return err
				}
				cfg.Resize = size
			}

			application, manager, err := start(cmd, cfg)
			if err != nil {
				return err
			}
			defer manager.Shutdown()

			out := cmd.OutOrStdout()
			for _, path := range args {
				m, err := application.Measure(manager.Context(), path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\tnoise=%.4f\tsharpness=%.4f\n", path, m.Noise, m.Sharpness)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&resize, "resize", "", "Resize each image to WIDTHxHEIGHT before measuring")

	return cmd
}

// loadConfig reads the optional config file and applies the logging flags.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if cmd.Flags().Changed("human") {
		cfg.Log.Human = opts.human
	}

	return cfg, cfg.Validate()
}

// start builds the application and ties it to a shutdown manager that
// cancels the command's context on SIGINT or SIGTERM.
func start(cmd *cobra.Command, cfg config.Config) (*app.Application, *shutdown.Manager, error) {
	log, err := logger.New(logger.Options{
		Level: cfg.Log.Level,
		Human: cfg.Log.Human,
		Out:   cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, err
	}

	application, err := app.NewApplication(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	manager := shutdown.NewManager(cmd.Context(), log)
	manager.Register(application)
	manager.Listen()

	return application, manager, nil
}

func printReport(w io.Writer, report *app.Report) {
	fmt.Fprintf(w, "Enhanced %s -> %s\n", report.Request.TargetPath, report.Request.OutputPath)
	fmt.Fprintf(w, "  reference:   %s\n", report.Request.ReferencePath)
	fmt.Fprintf(w, "  resize:      %s\n", report.Resize)
	fmt.Fprintf(w, "  kernel size: %d\n", report.Parameters.KernelSize)
	fmt.Fprintf(w, "  alpha:       %d\n", report.Parameters.Alpha)
	fmt.Fprintf(w, "  noise:       reference %.4f, target %.4f -> %.4f\n",
		report.Parameters.Reference.Noise, report.Before.Noise, report.After.Noise)
	fmt.Fprintf(w, "  sharpness:   reference %.4f, target %.4f -> %.4f\n",
		report.Parameters.Reference.Sharpness, report.Before.Sharpness, report.After.Sharpness)
	fmt.Fprintf(w, "  psnr:        %s\n", formatPSNR(report.PSNR))
	fmt.Fprintf(w, "  elapsed:     %s\n", report.Elapsed)

	operations := make([]string, 0, len(report.Timings))
	for operation := range report.Timings {
		operations = append(operations, operation)
	}
	sort.Strings(operations)
	for _, operation := range operations {
		fmt.Fprintf(w, "    %-16s %s\n", operation, report.Timings[operation])
	}
}

func formatPSNR(psnr float64) string {
	if math.IsInf(psnr, 1) {
		return "inf (identical)"
	}
	return fmt.Sprintf("%.2f dB", psnr)
}
