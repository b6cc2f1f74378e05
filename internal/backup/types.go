package backup

import "time"

// Config controls periodic decks file backups.
type Config struct {
	Enabled  bool
	Interval time.Duration
	LocalDir string
	KeepLast int
}

// Snapshotter is the minimal snapshot contract used by Manager. The deck
// collection satisfies it.
type Snapshotter interface {
	Path() string
	SnapshotTo(dstPath string) error
}
