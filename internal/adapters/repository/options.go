package repository

import "os"

// FileOption applies a configuration option to the FileStore.
type FileOption func(*FileStore)

// WithFileMode sets the permissions of written ledger documents.
func WithFileMode(mode os.FileMode) FileOption {
	return func(s *FileStore) {
		if mode != 0 {
			s.fileMode = mode
		}
	}
}

// WithIndent pretty-prints ledger documents on save.
func WithIndent(enabled bool) FileOption {
	return func(s *FileStore) {
		s.indent = enabled
	}
}
