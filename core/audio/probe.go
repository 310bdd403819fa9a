package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"time"

	"Sonora/logger"
)

// DefaultProbeTimeout bounds a single ffprobe run.
const DefaultProbeTimeout = 15 * time.Second

// Duration is the outcome of a probe: either a known whole number of seconds or unknown.
type Duration struct {
	Seconds int
	Known   bool
}

// KnownDuration wraps a measured duration.
func KnownDuration(seconds int) Duration {
	return Duration{Seconds: seconds, Known: true}
}

// UnknownDuration is returned whenever the probe could not measure the file.
func UnknownDuration() Duration {
	return Duration{}
}

// OrZero 未知时长按 0 秒入库
func (d Duration) OrZero() int {
	if !d.Known {
		return 0
	}
	return d.Seconds
}

func (d Duration) String() string {
	if !d.Known {
		return "unknown"
	}
	return fmt.Sprintf("%ds", d.Seconds)
}

// Prober measures audio durations. Implementations never fail; problems yield UnknownDuration.
type Prober interface {
	Probe(ctx context.Context, path string) Duration
}

// FFprobeProber runs the external ffprobe tool.
type FFprobeProber struct {
	ffprobePath string
	timeout     time.Duration
}

// NewFFprobeProber creates a prober. A non-positive timeout falls back to DefaultProbeTimeout.
func NewFFprobeProber(ffprobePath string, timeout time.Duration) *FFprobeProber {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &FFprobeProber{ffprobePath: ffprobePath, timeout: timeout}
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe 调用 ffprobe 获取时长（秒，向下取整）。任何失败都只记录日志并返回未知
func (p *FFprobeProber) Probe(ctx context.Context, path string) Duration {
	seconds, err := p.run(ctx, path)
	if err != nil {
		logger.Warn("Duration probe failed",
			logger.String("file", path),
			logger.ErrorField(err))
		return UnknownDuration()
	}
	return KnownDuration(seconds)
}

func (p *FFprobeProber) run(ctx context.Context, path string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	// 超时被杀后不再等待子进程持有的输出管道
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe timed out after %s: %w", p.timeout, ctx.Err())
		}
		return 0, fmt.Errorf("ffprobe execution failed: %w (stderr: %s)", err, bytes.TrimSpace(stderr.Bytes()))
	}

	var probeData ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}
	if probeData.Format.Duration == "" {
		return 0, fmt.Errorf("duration not found in ffprobe output")
	}

	duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", probeData.Format.Duration, err)
	}
	if duration < 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return 0, fmt.Errorf("invalid duration %q", probeData.Format.Duration)
	}
	return int(duration), nil
}
