package port

import "loganalyzer/internal/domain"

type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}

// DocumentLoader reads a whole file as text.
type DocumentLoader interface {
	Load(path string) (domain.TextDocument, error)
}

// Journal appends timestamped entries to the analysis log.
type Journal interface {
	Append(message string) error
}
