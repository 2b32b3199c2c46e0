package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	toolName = "strata"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644
)

// Path to the build record database.
//
//	Linux:   $XDG_STATE_HOME/strata/records.db or ~/.local/state/strata/records.db
//	macOS:   ~/Library/Application Support/strata/records.db
func RecordDB() string {
	return filepath.Join(xdg.StateHome, toolName, "records.db")
}

// Path to the directory build contexts are staged under before upload.
//
//	Linux:   $XDG_CACHE_HOME/strata/staging or ~/.cache/strata/staging
//	macOS:   ~/Library/Caches/strata/staging
func Staging() string {
	return filepath.Join(xdg.CacheHome, toolName, "staging")
}

// Default directory exported image archives are written to.
//
//	Linux:   $XDG_DATA_HOME/strata/images or ~/.local/share/strata/images
//	macOS:   ~/Library/Application Support/strata/images
func Images() string {
	return filepath.Join(xdg.DataHome, toolName, "images")
}
