package storage

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// DirGate grants write access to a single output directory
type DirGate struct {
	dir    string
	logger *zap.Logger
}

// NewDirGate creates a gate for dir
func NewDirGate(dir string, logger *zap.Logger) *DirGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirGate{dir: dir, logger: logger}
}

// Dir returns the guarded directory
func (g *DirGate) Dir() string {
	return g.dir
}

// RequestStoragePermission creates the directory if needed and checks it
// with a throwaway file. A false result with a nil error means access was refused.
func (g *DirGate) RequestStoragePermission(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if g.dir == "" {
		return false, fmt.Errorf("output directory is not configured")
	}

	if err := os.MkdirAll(g.dir, 0755); err != nil {
		g.logger.Warn("Cannot create output directory", zap.String("dir", g.dir), zap.Error(err))
		return false, nil
	}

	info, err := os.Stat(g.dir)
	if err != nil {
		return false, fmt.Errorf("failed to stat output directory: %w", err)
	}
	if !info.IsDir() {
		g.logger.Warn("Output path is not a directory", zap.String("dir", g.dir))
		return false, nil
	}

	scratch, err := os.CreateTemp(g.dir, ".trackdl-write-*")
	if err != nil {
		g.logger.Warn("Output directory is not writable", zap.String("dir", g.dir), zap.Error(err))
		return false, nil
	}
	name := scratch.Name()
	scratch.Close()
	os.Remove(name)

	return true, nil
}
