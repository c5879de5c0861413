package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Setup sends the standard logger to stdout and, when logFile is set, to a
// rotating file as well. The returned closer flushes the file.
func Setup(logFile string) (io.Closer, error) {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if logFile == "" {
		log.SetOutput(os.Stdout)
		return io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // 10 MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	return rotator, nil
}
