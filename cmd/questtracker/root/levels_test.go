package root

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SakuraBurst/questtracker/internal/tracker/leveling"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLevelsTable(t *testing.T) {
	out, err := runRoot(t, "levels", "--from", "1", "--to", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "LEVEL")
	assert.Regexp(t, `(?m)^1\s+100\s+0$`, out)
	assert.Regexp(t, `(?m)^2\s+282\s+100$`, out)
	assert.Regexp(t, `(?m)^3\s+519\s+382$`, out)
}

func TestLevelsForExperience(t *testing.T) {
	out, err := runRoot(t, "levels", "--exp", "150")
	require.NoError(t, err)
	assert.Equal(t, "level 2, 50/282 towards level 3\n", out)
}

func TestLevelsInvalidRange(t *testing.T) {
	_, err := runRoot(t, "levels", "--from", "5", "--to", "2")
	assert.Error(t, err)
}

func TestLevelsTableFromMiddle(t *testing.T) {
	out, err := runRoot(t, "levels", "--from", "5", "--to", "6")
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^5\s+1118\s+1701$`, out)
	assert.Regexp(t, `(?m)^6\s+1469\s+2819$`, out)
	assert.NotRegexp(t, `(?m)^4\s`, out)
}

func TestLevelsTableRunningTotal(t *testing.T) {
	out, err := runRoot(t, "levels", "--from", "1", "--to", "3000")
	require.NoError(t, err)
	want := fmt.Sprintf(`(?m)^3000\s+%d\s+%d$`, leveling.RequiredExperience(3000), leveling.TotalForLevel(3000))
	assert.Regexp(t, want, out)
}
