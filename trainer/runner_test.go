package trainer

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func TestExecRunnerStreamsLines(t *testing.T) {
	sh := requireShell(t)

	var lines []string
	code, err := ExecRunner{}.Run(context.Background(), sh,
		[]string{"-c", `echo first; printf 'bar 1\rbar 2\n' >&2; exit 3`},
		func(l string) { lines = append(lines, l) })

	require.Error(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, []string{"first", "bar 1", "bar 2"}, lines)
}

func TestExecRunnerSuccess(t *testing.T) {
	sh := requireShell(t)
	code, err := ExecRunner{}.Run(context.Background(), sh, []string{"-c", "true"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestExecRunnerCancel(t *testing.T) {
	sh := requireShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := ExecRunner{GracePeriod: time.Second}.Run(ctx, sh, []string{"-c", "exec sleep 5"}, nil)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestExecRunnerNotFound(t *testing.T) {
	code, err := ExecRunner{}.Run(context.Background(), "debris-no-such-framework", nil, nil)
	assert.Error(t, err)
	assert.Equal(t, -1, code)
}
