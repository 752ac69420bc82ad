package trainer

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/smallnest/ringbuffer"

	"github.com/nvr-ai/debris/common"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

// stripANSI removes terminal colour and cursor sequences.
func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

// outputTail keeps the most recent framework output, bounded in bytes. Older lines are
// dropped whole.
type outputTail struct {
	buf  *ringbuffer.RingBuffer
	size int
}

func newOutputTail(size int) *outputTail {
	return &outputTail{buf: ringbuffer.New(size), size: size}
}

func (t *outputTail) Add(line string) {
	rec := []byte(line + "\n")
	if len(rec) > t.size {
		rec = rec[len(rec)-t.size:]
	}
	for t.buf.Free() < len(rec) {
		t.dropLine()
	}
	_, _ = t.buf.Write(rec)
}

func (t *outputTail) dropLine() {
	one := make([]byte, 1)
	for t.buf.Length() > 0 {
		if _, err := t.buf.Read(one); err != nil || one[0] == '\n' {
			return
		}
	}
}

// Lines drains the tail.
func (t *outputTail) Lines() []string {
	data := make([]byte, t.buf.Length())
	n, _ := t.buf.Read(data)
	data = bytes.TrimRight(data[:n], "\n")
	if len(data) == 0 {
		return nil
	}
	return strings.Split(string(data), "\n")
}

var failurePatterns = []struct {
	kind     common.FailureKind
	patterns []string
}{
	{common.FailureOutOfMemory, []string{"out of memory", "outofmemoryerror", "cudnn_status_alloc_failed", "cannot allocate memory"}},
	{common.FailureInvalidDevice, []string{"invalid cuda", "invalid device", "torch.cuda.is_available(): false", "no cuda gpus are available"}},
	{common.FailureMissingWeights, []string{"filenotfounderror", "no such file or directory", "download failure", "failed to download", "does not exist"}},
	{common.FailureInterrupted, []string{"keyboardinterrupt"}},
}

// classify maps a failed run to a failure kind from its exit state and output.
func classify(ctx context.Context, exitCode int, lines []string) common.FailureKind {
	if ctx.Err() != nil {
		return common.FailureInterrupted
	}
	text := strings.ToLower(strings.Join(lines, "\n"))
	for _, fp := range failurePatterns {
		for _, p := range fp.patterns {
			if strings.Contains(text, p) {
				return fp.kind
			}
		}
	}
	// 130 and 143 are shell conventions for SIGINT and SIGTERM.
	if exitCode == 130 || exitCode == 143 {
		return common.FailureInterrupted
	}
	return common.FailureUnknown
}
