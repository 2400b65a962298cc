package executor

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKilledByTimeout(t *testing.T) {
	exited := exec.Command("/bin/true")
	require.NoError(t, exited.Run())

	killed := exec.Command("/bin/sleep", "10")
	require.NoError(t, killed.Start())
	require.NoError(t, killed.Process.Kill())
	require.Error(t, killed.Wait())

	assert.True(t, killedByTimeout(context.DeadlineExceeded, killed.ProcessState))
	assert.True(t, killedByTimeout(context.DeadlineExceeded, nil))
	// finished right before the deadline
	assert.False(t, killedByTimeout(context.DeadlineExceeded, exited.ProcessState))
	assert.False(t, killedByTimeout(nil, killed.ProcessState))
	assert.False(t, killedByTimeout(context.Canceled, killed.ProcessState))
}
