package ports

// FileStore persists cluster artifacts. Paths are absolute or relative to the
// process working directory.
type FileStore interface {
	EnsureDir(path string) error
	WriteText(path, content string) error
	// WriteSecret is WriteText with the file readable by its owner only.
	WriteSecret(path, content string) error
	ReadText(path string) (string, error)
	WriteJSON(path string, v interface{}) error
	ReadJSON(path string, v interface{}) error
	Exists(path string) (bool, error)
	ListDirs(path string) ([]string, error)
	Remove(path string) error
}
