package send_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hexmed-tecnologia/dicomsync/internal/runconfig"
	"github.com/hexmed-tecnologia/dicomsync/internal/send"
)

func TestCheckpointSuffix(t *testing.T) {
	t.Parallel()

	toolF := runconfig.Defaults()
	toolF.Toolkit = runconfig.ToolkitF

	toolT := runconfig.Defaults()
	toolT.Toolkit = runconfig.ToolkitT

	assert.Equal(t, "toolF_files", send.CheckpointSuffix(&toolF, false))
	assert.Equal(t, "toolF_folders", send.CheckpointSuffix(&toolF, true))
	assert.Equal(t, "toolT", send.CheckpointSuffix(&toolT, false))
	assert.Equal(t, "toolT", send.CheckpointSuffix(&toolT, true))
}
