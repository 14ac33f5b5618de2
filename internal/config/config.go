// Package config holds the runtime settings of the command line tool. The
// enhancement heuristics are not configurable.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"reference-enhancer/internal/logger"
	"reference-enhancer/internal/opencv/safe"
	"reference-enhancer/internal/pipeline"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Log    LogConfig    `yaml:"log"`
	Output OutputConfig `yaml:"output"`
	Resize ResizeConfig `yaml:"resize"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Human bool   `yaml:"human"`
}

type OutputConfig struct {
	JPEGQuality int `yaml:"jpeg_quality"`
}

// ResizeConfig scales both images before measuring. Zero width and height
// leave the images untouched.
type ResizeConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

func (r ResizeConfig) Enabled() bool {
	return r.Width > 0 && r.Height > 0
}

func (r ResizeConfig) String() string {
	if !r.Enabled() {
		return "off"
	}
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

func Default() Config {
	return Config{
		Log:    LogConfig{Level: "info"},
		Output: OutputConfig{JPEGQuality: pipeline.DefaultJPEGQuality},
	}
}

// Load reads a YAML file on top of Default. Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Parse(data []byte) (Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}

	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("%w: output.jpeg_quality %d outside [1,100]", ErrInvalidConfig, c.Output.JPEGQuality)
	}

	if c.Resize.Width == 0 && c.Resize.Height == 0 {
		return nil
	}
	if err := safe.ValidateDimensions(c.Resize.Width, c.Resize.Height, "resize"); err != nil {
		return fmt.Errorf("%w: resize: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ParseSize parses "WIDTHxHEIGHT". The empty string and "off" disable
// resizing.
func ParseSize(value string) (ResizeConfig, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" || value == "off" {
		return ResizeConfig{}, nil
	}

	w, h, ok := strings.Cut(value, "x")
	if !ok {
		return ResizeConfig{}, fmt.Errorf("%w: size %q is not WIDTHxHEIGHT", ErrInvalidConfig, value)
	}

	width, err := strconv.Atoi(w)
	if err != nil {
		return ResizeConfig{}, fmt.Errorf("%w: width %q: %w", ErrInvalidConfig, w, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return ResizeConfig{}, fmt.Errorf("%w: height %q: %w", ErrInvalidConfig, h, err)
	}

	if err := safe.ValidateDimensions(width, height, "resize"); err != nil {
		return ResizeConfig{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return ResizeConfig{Width: width, Height: height}, nil
}
