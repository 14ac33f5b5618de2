// Package app wires loading, enhancement and saving into the operations
// exposed by the command line tool.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"reference-enhancer/internal/config"
	"reference-enhancer/internal/debug/timing"
	"reference-enhancer/internal/enhance"
	"reference-enhancer/internal/logger"
	"reference-enhancer/internal/opencv/conversion"
	"reference-enhancer/internal/opencv/safe"
	"reference-enhancer/internal/pipeline"
)

const (
	AppName    = "reference-enhancer"
	AppVersion = "1.0.0"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrShutdown       = errors.New("application is shut down")
)

type EnhanceRequest struct {
	ReferencePath string
	TargetPath    string
	OutputPath    string
}

func (r EnhanceRequest) Validate() error {
	switch {
	case r.ReferencePath == "":
		return fmt.Errorf("%w: reference path is required", ErrInvalidRequest)
	case r.TargetPath == "":
		return fmt.Errorf("%w: target path is required", ErrInvalidRequest)
	case r.OutputPath == "":
		return fmt.Errorf("%w: output path is required", ErrInvalidRequest)
	}
	return nil
}

// Report describes one enhancement. Before and After are measurements of the
// target; PSNR compares the target with the saved result.
type Report struct {
	Request    EnhanceRequest
	Resize     config.ResizeConfig
	Parameters enhance.Parameters
	Before     enhance.Measurement
	After      enhance.Measurement
	PSNR       float64
	Elapsed    time.Duration
	Timings    map[string]time.Duration
}

type Application struct {
	config   config.Config
	logger   logger.Logger
	timing   *timing.Tracker
	loader   pipeline.ImageLoader
	saver    pipeline.ImageSaver
	enhancer *enhance.Enhancer

	mu         sync.Mutex
	isShutdown bool
}

func NewApplication(cfg config.Config, log logger.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	tracker := timing.NewTracker(log)

	application := &Application{
		config:   cfg,
		logger:   log,
		timing:   tracker,
		loader:   pipeline.NewLoader(log, tracker),
		saver:    pipeline.NewSaver(log, tracker, cfg.Output.JPEGQuality),
		enhancer: enhance.NewEnhancer(log, tracker),
	}

	log.Debug("Application", "initialization complete", map[string]interface{}{
		"version":      AppVersion,
		"jpeg_quality": cfg.Output.JPEGQuality,
		"resize":       cfg.Resize.String(),
	})

	return application, nil
}

// Enhance loads both images, adjusts the target towards the reference and
// writes the result to req.OutputPath.
func (a *Application) Enhance(ctx context.Context, req EnhanceRequest) (*Report, error) {
	if err := a.checkRunning(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	a.timing.Reset("")

	reference, err := a.load(ctx, req.ReferencePath)
	if err != nil {
		return nil, fmt.Errorf("loading reference: %w", err)
	}
	defer reference.Close()

	target, err := a.load(ctx, req.TargetPath)
	if err != nil {
		return nil, fmt.Errorf("loading target: %w", err)
	}
	defer target.Close()

	result, err := a.enhancer.Enhance(ctx, reference, target)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	after, err := a.enhancer.Measure(ctx, result.Image)
	if err != nil {
		return nil, fmt.Errorf("measuring result: %w", err)
	}

	psnr, err := pipeline.CalculatePSNR(target, result.Image)
	if err != nil {
		return nil, fmt.Errorf("comparing result: %w", err)
	}

	if err := a.saver.SaveToPath(ctx, req.OutputPath, result.Image); err != nil {
		return nil, fmt.Errorf("saving result: %w", err)
	}

	report := &Report{
		Request:    req,
		Resize:     a.config.Resize,
		Parameters: result.Parameters,
		Before:     result.Parameters.Target,
		After:      after,
		PSNR:       psnr,
		Elapsed:    time.Since(start),
		Timings:    a.timings(),
	}

	a.logger.Info("Application", "enhancement complete", map[string]interface{}{
		"reference":   req.ReferencePath,
		"target":      req.TargetPath,
		"output":      req.OutputPath,
		"kernel_size": report.Parameters.KernelSize,
		"alpha":       report.Parameters.Alpha,
		"psnr":        psnr,
		"elapsed_ms":  report.Elapsed.Milliseconds(),
	})

	return report, nil
}

// Measure returns the noise and sharpness readings of the image at path,
// after the configured resize.
func (a *Application) Measure(ctx context.Context, path string) (enhance.Measurement, error) {
	if err := a.checkRunning(); err != nil {
		return enhance.Measurement{}, err
	}
	if path == "" {
		return enhance.Measurement{}, fmt.Errorf("%w: image path is required", ErrInvalidRequest)
	}

	img, err := a.load(ctx, path)
	if err != nil {
		return enhance.Measurement{}, err
	}
	defer img.Close()

	measurement, err := a.enhancer.Measure(ctx, img)
	if err != nil {
		return enhance.Measurement{}, fmt.Errorf("%s: %w", path, err)
	}

	a.logger.Debug("Application", "image measured", map[string]interface{}{
		"path":      path,
		"noise":     measurement.Noise,
		"sharpness": measurement.Sharpness,
	})

	return measurement, nil
}

// Shutdown rejects further requests. Work already running finishes or is
// cancelled through its context.
func (a *Application) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.isShutdown {
		return
	}
	a.isShutdown = true
	a.logger.Info("Application", "shutdown complete", nil)
}

func (a *Application) checkRunning() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.isShutdown {
		return ErrShutdown
	}
	return nil
}

// load decodes path and applies the configured resize. The caller owns the
// returned Mat.
func (a *Application) load(ctx context.Context, path string) (*safe.Mat, error) {
	data, err := a.loader.LoadFromPath(ctx, path)
	if err != nil {
		return nil, err
	}

	if !a.config.Resize.Enabled() {
		return data.Mat, nil
	}
	defer data.Close()

	resized, err := conversion.ResizeArea(data.Mat, a.config.Resize.Width, a.config.Resize.Height)
	if err != nil {
		return nil, fmt.Errorf("resizing %s: %w", path, err)
	}

	a.logger.Debug("Application", "image resized", map[string]interface{}{
		"path":        path,
		"from_width":  data.Width,
		"from_height": data.Height,
		"to_width":    resized.Cols(),
		"to_height":   resized.Rows(),
	})

	return resized, nil
}

func (a *Application) timings() map[string]time.Duration {
	all := a.timing.GetAllTimings()
	totals := make(map[string]time.Duration, len(all))
	for operation := range all {
		totals[operation] = a.timing.GetTotalTime(operation)
	}
	return totals
}
