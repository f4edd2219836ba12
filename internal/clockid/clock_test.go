package clockid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hexmed-tecnologia/dicomsync/internal/clockid"
)

func TestNormalizeRunID_Idempotent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		raw    string
		driver clockid.Driver
		mode   clockid.Mode
	}{
		{"toolF files", "31072026_101500", clockid.DriverToolF, clockid.ModeFiles},
		{"toolF folders", "31072026_101500", clockid.DriverToolF, clockid.ModeFolders},
		{"toolT", "31072026_101500", clockid.DriverToolT, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			once := clockid.NormalizeRunID(tc.raw, tc.driver, tc.mode)
			twice := clockid.NormalizeRunID(once, tc.driver, tc.mode)

			assert.Equal(t, once, twice)
		})
	}
}

func TestNormalizeRunID_Suffixes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "x_toolF_files", clockid.NormalizeRunID("x", clockid.DriverToolF, clockid.ModeFiles))
	assert.Equal(t, "x_toolF_folders", clockid.NormalizeRunID("x", clockid.DriverToolF, clockid.ModeFolders))
	assert.Equal(t, "x_toolT", clockid.NormalizeRunID("x", clockid.DriverToolT, ""))
}

func TestNormalizeRunID_SwitchingDriverReplacesSuffix(t *testing.T) {
	t.Parallel()

	files := clockid.NormalizeRunID("x", clockid.DriverToolF, clockid.ModeFiles)
	folders := clockid.NormalizeRunID(files, clockid.DriverToolF, clockid.ModeFolders)

	assert.Equal(t, "x_toolF_folders", folders)
}
