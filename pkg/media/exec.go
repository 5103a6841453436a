package media

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/veracity-labs/veracity/pkg/metrics"
)

// killDelay is how long a subprocess gets to exit after its context fires
// before it is killed outright.
const killDelay = 3 * time.Second

// tailBuffer keeps only the last max bytes written. Used for stderr so a
// chatty decoder cannot balloon memory while the useful error is always the
// final lines anyway.
type tailBuffer struct {
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return strings.TrimSpace(string(b.buf))
}

// runTool runs one subprocess to completion, streaming stdout into the
// given writer and keeping a stderr tail for diagnostics. The context kills
// the process when it fires.
func runTool(ctx context.Context, tool, path string, args []string, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, path, args...)
	stderr := &tailBuffer{max: 4096}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = killDelay

	slog.Debug("Running media tool", "tool", tool, "args", strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		metrics.FFmpegRunsTotal.WithLabelValues(tool, "error").Inc()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &ToolError{Tool: tool, Err: err, Stderr: stderr.String()}
	}
	metrics.FFmpegRunsTotal.WithLabelValues(tool, "ok").Inc()
	return nil
}
