package build

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
)

const (
	// DefaultMaxLogFiles is the default maximum number of rotated log
	// files kept on disk.
	DefaultMaxLogFiles = 10

	// DefaultMaxLogFileSize is the default maximum log file size in MB
	// before rotation.
	DefaultMaxLogFileSize = 20

	// DefaultLogFilename is the log file name used when none is given.
	DefaultLogFilename = "trouped.log"
)

// LogRotatorConfig configures the rotating log file writer.
type LogRotatorConfig struct {
	// LogDir is the directory log files are written to.
	LogDir string

	// MaxLogFiles is the number of rotated files to keep. Zero disables
	// rotation.
	MaxLogFiles int

	// MaxLogFileSize is the rotation threshold in megabytes.
	MaxLogFileSize int

	// Filename overrides DefaultLogFilename when non-empty.
	Filename string
}

// RotatingLogWriter is an io.Writer feeding a jrick/logrotate rotator through
// a pipe, with gzip compression of rotated files.
type RotatingLogWriter struct {
	pipe    *io.PipeWriter
	rotator *rotator.Rotator
}

// NewRotatingLogWriter creates an uninitialized rotating log writer. Init
// must be called before the first write.
func NewRotatingLogWriter() *RotatingLogWriter {
	return &RotatingLogWriter{}
}

// Init creates the log directory, configures rotation, and starts the
// rotator goroutine.
func (r *RotatingLogWriter) Init(cfg *LogRotatorConfig) error {
	filename := cfg.Filename
	if filename == "" {
		filename = DefaultLogFilename
	}

	logFile := filepath.Join(cfg.LogDir, filename)
	if err := os.MkdirAll(filepath.Dir(logFile), 0o700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	// The rotator takes its threshold in KB; the config is in MB.
	var err error
	r.rotator, err = rotator.New(
		logFile, int64(cfg.MaxLogFileSize*1024), false, cfg.MaxLogFiles,
	)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	r.rotator.SetCompressor(gzip.NewWriter(nil), ".gz")

	// Feed the rotator from a pipe so writes never block on rotation.
	// Errors go to stderr: the rotator itself is the log destination.
	pr, pw := io.Pipe()
	go func() {
		if err := r.rotator.Run(pr); err != nil {
			_, _ = fmt.Fprintf(os.Stderr,
				"failed to run file rotator: %v\n", err)
		}
	}()

	r.pipe = pw

	return nil
}

// Write feeds the rotator pipe. Writes before Init are discarded.
func (r *RotatingLogWriter) Write(b []byte) (int, error) {
	if r.pipe == nil {
		return len(b), nil
	}

	return r.pipe.Write(b)
}

// Close flushes and stops the rotator goroutine.
func (r *RotatingLogWriter) Close() error {
	if r.pipe == nil {
		return nil
	}

	return r.pipe.Close()
}
