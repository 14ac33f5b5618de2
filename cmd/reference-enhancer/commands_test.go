package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"reference-enhancer/internal/config"
	"reference-enhancer/internal/opencv/safe"
	"reference-enhancer/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func writeGray(t *testing.T, path string, value uint8) {
	t.Helper()

	tmp := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(value), float64(value), float64(value), 0), 16, 16, gocv.MatTypeCV8UC3)
	defer tmp.Close()

	mat, err := safe.NewMatFromMat(tmp)
	require.NoError(t, err)
	defer mat.Close()

	require.NoError(t, pipeline.NewSaver(nil, nil, 0).SaveToPath(context.Background(), path, mat))
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestMeasureCommand(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	writeGray(t, a, 10)
	writeGray(t, b, 200)

	out, err := run(t, "measure", "--log-level", "off", a, b)
	require.NoError(t, err)

	assert.Contains(t, out, a+"\tnoise=0.0000\tsharpness=0.0000")
	assert.Contains(t, out, b+"\tnoise=0.0000\tsharpness=0.0000")
}

func TestMeasureCommandRequiresImage(t *testing.T) {
	_, err := run(t, "measure")
	assert.Error(t, err)
}

func TestEnhanceCommand(t *testing.T) {
	dir := t.TempDir()
	reference := filepath.Join(dir, "reference.png")
	target := filepath.Join(dir, "target.png")
	output := filepath.Join(dir, "result.png")
	writeGray(t, reference, 120)
	writeGray(t, target, 120)

	out, err := run(t, "enhance", "--log-level", "off",
		"--reference", reference, "--target", target, "--output", output, "--resize", "8x8")
	require.NoError(t, err)

	assert.Contains(t, out, "kernel size: 3")
	assert.Contains(t, out, "alpha:       9")
	assert.Contains(t, out, "resize:      8x8")
	assert.Contains(t, out, "inf (identical)")
	assert.FileExists(t, output)
}

func TestEnhanceCommandUsesConfigFile(t *testing.T) {
	dir := t.TempDir()
	reference := filepath.Join(dir, "reference.png")
	target := filepath.Join(dir, "target.png")
	writeGray(t, reference, 50)
	writeGray(t, target, 50)

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  level: off\nresize:\n  width: 4\n  height: 6\n"), 0o644))

	out, err := run(t, "enhance", "--config", cfgPath,
		"-r", reference, "-t", target, "-o", filepath.Join(dir, "out.png"))
	require.NoError(t, err)
	assert.Contains(t, out, "resize:      4x6")
}

func TestEnhanceCommandRejectsBadFlags(t *testing.T) {
	dir := t.TempDir()
	args := []string{"enhance", "--log-level", "off",
		"-r", filepath.Join(dir, "a.png"), "-t", filepath.Join(dir, "b.png"), "-o", filepath.Join(dir, "c.png")}

	_, err := run(t, append(args, "--resize", "wide")...)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = run(t, append(args, "--quality", "0")...)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = run(t, "enhance", "--log-level", "loud", "-r", "a", "-t", "b", "-o", "c")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = run(t, args...)
	assert.ErrorIs(t, err, safe.ErrInvalidImage)

	_, err = run(t, "enhance", "-r", "a.png")
	assert.Error(t, err)
}
