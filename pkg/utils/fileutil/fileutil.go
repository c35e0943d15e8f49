package fileutil

// Releaser undoes a file lock taken by NewLock.
type Releaser interface {
	Release() error
}
