package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNamespace = "urn:virtplan:plan:1.0"

func TestVMSetAndGet(t *testing.T) {
	env := newTestEnv(t, "web01")

	_, err := env.run(t, "plan", "create", "gold", "cpu_shares=2048")
	require.NoError(t, err)

	_, err = env.run(t, "vm", "set", "web01", "gold")
	require.NoError(t, err)

	// The fragment landed in the domain's metadata under the
	// configured namespace.
	fragment, ok := env.domain(t, "web01").Fragment(testNamespace)
	require.True(t, ok)
	assert.Contains(t, fragment, "<plan>gold</plan>")
	assert.Contains(t, fragment, "<cpu_shares>2048</cpu_shares>")

	out, err := env.run(t, "vm", "get", "web01")
	require.NoError(t, err)
	assert.Equal(t, "gold\n", out)
}

func TestVMSet_DefaultPlanWhenOmitted(t *testing.T) {
	env := newTestEnv(t, "web01")

	_, err := env.run(t, "plan", "create", "default", "cpu_shares=512")
	require.NoError(t, err)

	_, err = env.run(t, "vm", "set", "web01")
	require.NoError(t, err)

	out, err := env.run(t, "vm", "get", "web01")
	require.NoError(t, err)
	assert.Equal(t, "default\n", out)
}

func TestVMSet_OverwritesPreviousAssignment(t *testing.T) {
	env := newTestEnv(t, "web01")

	_, err := env.run(t, "plan", "create", "gold", "a=1")
	require.NoError(t, err)
	_, err = env.run(t, "plan", "create", "silver", "a=2")
	require.NoError(t, err)

	_, err = env.run(t, "vm", "set", "web01", "gold")
	require.NoError(t, err)
	_, err = env.run(t, "vm", "set", "web01", "silver")
	require.NoError(t, err)

	out, err := env.run(t, "vm", "get", "web01")
	require.NoError(t, err)
	assert.Equal(t, "silver\n", out)
}

func TestVMSet_UnknownPlan(t *testing.T) {
	env := newTestEnv(t, "web01")

	_, err := env.run(t, "vm", "set", "web01", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "nope")

	// Nothing was written to the domain.
	_, ok := env.domain(t, "web01").Fragment(testNamespace)
	assert.False(t, ok)
}

func TestVMSet_UnknownDomain(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "plan", "create", "gold")
	require.NoError(t, err)

	_, err = env.run(t, "vm", "set", "ghost", "gold")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "ghost")
}

func TestVMSet_ConnectFailure(t *testing.T) {
	env := newTestEnv(t, "web01")
	env.hv.ConnectErr = errors.New("no route to libvirtd")

	_, err := env.run(t, "plan", "create", "gold")
	require.NoError(t, err)

	_, err = env.run(t, "vm", "set", "web01", "gold")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestVMSet_MetadataWriteFailure(t *testing.T) {
	env := newTestEnv(t, "web01")
	env.domain(t, "web01").WriteErr = errors.New("read-only hypervisor")

	_, err := env.run(t, "plan", "create", "gold")
	require.NoError(t, err)

	_, err = env.run(t, "vm", "set", "web01", "gold")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestVMGet_NoAssignmentExitsThree(t *testing.T) {
	env := newTestEnv(t, "web01")

	_, err := env.run(t, "vm", "get", "web01")
	require.Error(t, err)
	assert.Equal(t, ExitNoAssignment, GetExitCode(err))
}

func TestVMGet_MalformedFragmentIsNoAssignment(t *testing.T) {
	env := newTestEnv(t, "web01")
	env.domain(t, "web01").Attach(testNamespace, "<<< not xml")

	_, err := env.run(t, "vm", "get", "web01")
	require.Error(t, err)
	assert.Equal(t, ExitNoAssignment, GetExitCode(err))
}

func TestVMGet_StaleReferenceStillReported(t *testing.T) {
	env := newTestEnv(t, "web01")

	_, err := env.run(t, "plan", "create", "gold", "a=1")
	require.NoError(t, err)
	_, err = env.run(t, "vm", "set", "web01", "gold")
	require.NoError(t, err)

	// Deleting the plan does not touch the domain.
	_, err = env.run(t, "plan", "delete", "gold")
	require.NoError(t, err)

	out, err := env.run(t, "vm", "get", "web01")
	require.NoError(t, err)
	assert.Equal(t, "gold\n", out)
}

func TestVMClear(t *testing.T) {
	env := newTestEnv(t, "web01")

	_, err := env.run(t, "plan", "create", "gold")
	require.NoError(t, err)
	_, err = env.run(t, "vm", "set", "web01", "gold")
	require.NoError(t, err)

	_, err = env.run(t, "vm", "clear", "web01")
	require.NoError(t, err)

	_, ok := env.domain(t, "web01").Fragment(testNamespace)
	assert.False(t, ok, "fragment removed")

	_, err = env.run(t, "vm", "get", "web01")
	require.Error(t, err)
	assert.Equal(t, ExitNoAssignment, GetExitCode(err))
}

func TestVMHistory(t *testing.T) {
	env := newTestEnv(t, "web01")

	_, err := env.run(t, "plan", "create", "gold")
	require.NoError(t, err)
	_, err = env.run(t, "vm", "set", "web01", "gold")
	require.NoError(t, err)
	_, err = env.run(t, "vm", "clear", "web01")
	require.NoError(t, err)

	out, err := env.run(t, "vm", "history", "web01")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	// Newest first: the clear precedes the set.
	assert.Contains(t, lines[0], "clear")
	assert.Contains(t, lines[1], "set")
	assert.Contains(t, lines[1], "gold")
}

func TestVMHistory_LimitFlag(t *testing.T) {
	env := newTestEnv(t, "web01")

	_, err := env.run(t, "plan", "create", "gold")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = env.run(t, "vm", "set", "web01", "gold")
		require.NoError(t, err)
	}

	out, err := env.run(t, "vm", "history", "web01", "--limit", "1")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimRight(out, "\n"), "\n"), 1)
}

func TestVMHistory_EmptyJournal(t *testing.T) {
	env := newTestEnv(t, "web01")

	out, err := env.run(t, "vm", "history", "web01")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestVMConnectionClosedAfterCommand(t *testing.T) {
	env := newTestEnv(t, "web01")

	_, err := env.run(t, "plan", "create", "gold")
	require.NoError(t, err)
	_, err = env.run(t, "vm", "set", "web01", "gold")
	require.NoError(t, err)

	assert.True(t, env.hv.Closed)
	assert.Equal(t, "test:///default", env.hv.ConnectedURI)
}
