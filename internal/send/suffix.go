package send

import "github.com/hexmed-tecnologia/dicomsync/internal/runconfig"

// CheckpointSuffix returns the driver/mode token used in the
// checkpoint filename (spec.md §3: send_checkpoint_{toolF_files|
// toolF_folders|toolT}.json), so switching driver on the same run cannot
// conflate progress. internal/clockid builds the run-ID suffix itself
// and does not call this function.
func CheckpointSuffix(cfg *runconfig.Config, toolFFolderMode bool) string {
	if cfg.Toolkit != runconfig.ToolkitF {
		return "toolT"
	}

	if toolFFolderMode {
		return "toolF_folders"
	}

	return "toolF_files"
}
