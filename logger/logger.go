package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger instances for different log levels. They write to stderr until Init
// points them at rotated files.
var (
	Audit = log.New(os.Stderr, "AUDIT: ", log.LstdFlags)
	Debug = log.New(os.Stderr, "DEBUG: ", log.LstdFlags)
	Warn  = log.New(os.Stderr, "WARN: ", log.LstdFlags)
	Error = log.New(os.Stderr, "ERROR: ", log.LstdFlags)
)

// Init creates <dir>/audit, <dir>/debug and <dir>/error and attaches a
// lumberjack writer to each logger.
func Init(dir string) error {
	for _, level := range []string{"audit", "debug", "error"} {
		if err := os.MkdirAll(filepath.Join(dir, level), os.ModePerm); err != nil {
			return fmt.Errorf("could not create log directory %s: %w", level, err)
		}
	}

	Audit = log.New(rotated(dir, "audit"), "AUDIT: ", log.LstdFlags)
	Debug = log.New(rotated(dir, "debug"), "DEBUG: ", log.LstdFlags)

	// warnings share the error file
	errLog := rotated(dir, "error")
	Warn = log.New(errLog, "WARN: ", log.LstdFlags)
	Error = log.New(errLog, "ERROR: ", log.LstdFlags)
	return nil
}

func rotated(dir, level string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, level, level+".log"),
		MaxSize:    1,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}
