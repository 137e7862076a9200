package domain

import "path/filepath"

const (
	// StateDirName is the name of the per-project state directory.
	StateDirName = ".kiln"

	// ManifestFileName is the name of the output manifest inside the state directory.
	ManifestFileName = "manifest.json"

	// ConfigFileName is the name of the project configuration file.
	ConfigFileName = "kiln.yaml"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644
)

// DefaultStatePath returns the state directory relative to the project root.
func DefaultStatePath() string {
	return StateDirName
}

// DefaultManifestPath returns the output manifest path relative to the project root.
// It joins .kiln and manifest.json.
func DefaultManifestPath() string {
	return filepath.Join(StateDirName, ManifestFileName)
}
