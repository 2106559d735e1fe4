package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"
)

// LogLevel represents the log level
type LogLevel int

const (
	// DEBUG level
	DEBUG LogLevel = iota
	// INFO level
	INFO
	// WARN level
	WARN
	// ERROR level
	ERROR
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// Logger is a leveled logger writing to the console, a rotated file, or both.
type Logger struct {
	level       LogLevel
	console     bool
	file        *os.File
	filePath    string
	maxSize     int64 // bytes
	maxBackups  int
	currentSize int64
	mu          sync.Mutex
}

// Config holds the logger settings.
type Config struct {
	Level LogLevel
	// FilePath is the log file location; empty disables file output.
	FilePath   string
	MaxSize    int // megabytes per file before rotation
	MaxBackups int
	Console    bool
}

// DefaultConfig returns the settings used before configuration is loaded.
func DefaultConfig() Config {
	return Config{
		Level:      INFO,
		FilePath:   "/var/log/sensor2mqtt.log",
		MaxSize:    10,
		MaxBackups: 5,
		Console:    true,
	}
}

// New creates a logger. A file path that cannot be opened is not fatal:
// the logger degrades to console-only so an unprivileged run still works.
func New(config Config) (*Logger, error) {
	l := &Logger{
		level:      config.Level,
		console:    config.Console,
		filePath:   config.FilePath,
		maxSize:    int64(config.MaxSize) * 1024 * 1024,
		maxBackups: config.MaxBackups,
	}

	if config.FilePath != "" {
		if err := l.openFile(); err != nil {
			if !config.Console {
				return nil, err
			}
			fmt.Fprintf(os.Stderr, "logger: %v, falling back to console only\n", err)
			l.filePath = ""
		}
	}

	if !l.console && l.file == nil {
		return nil, fmt.Errorf("logger has no output: file and console both disabled")
	}

	return l, nil
}

func (l *Logger) openFile() error {
	dir := filepath.Dir(l.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %v", dir, err)
	}

	file, err := os.OpenFile(l.filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %v", l.filePath, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file %s: %v", l.filePath, err)
	}

	l.file = file
	l.currentSize = info.Size()
	return nil
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, file, line, ok := runtime.Caller(3)
	if !ok {
		file = "unknown"
		line = 0
	}
	file = filepath.Base(file)

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	msg := fmt.Sprintf(format, args...)

	if l.console {
		colorCode := ""
		switch level {
		case DEBUG:
			colorCode = "\033[90m"
		case INFO:
			colorCode = "\033[32m"
		case WARN:
			colorCode = "\033[33m"
		case ERROR:
			colorCode = "\033[31m"
		}
		fmt.Fprintf(os.Stdout, "%s [%s%s\033[0m] %s:%d: %s\n",
			timestamp, colorCode, levelNames[level], file, line, msg)
	}

	if l.file != nil {
		entry := fmt.Sprintf("%s [%s] %s:%d: %s\n", timestamp, levelNames[level], file, line, msg)
		n, err := io.WriteString(l.file, entry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to write log: %v\n", err)
			return
		}
		l.currentSize += int64(n)
		if l.maxSize > 0 && l.currentSize >= l.maxSize {
			l.rotate()
		}
	}
}

// rotate renames the current log file with a timestamp suffix and starts a
// fresh one, pruning the oldest backups past maxBackups.
func (l *Logger) rotate() {
	l.file.Close()

	timestamp := time.Now().Format("20060102-150405")
	dir := filepath.Dir(l.filePath)
	base := filepath.Base(l.filePath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	backupPath := filepath.Join(dir, fmt.Sprintf("%s.%s%s", name, timestamp, ext))

	os.Rename(l.filePath, backupPath)
	l.cleanOldLogs()

	file, err := os.OpenFile(l.filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create new log file: %v\n", err)
		l.file = nil
		return
	}

	l.file = file
	l.currentSize = 0
}

func (l *Logger) cleanOldLogs() {
	dir := filepath.Dir(l.filePath)
	base := filepath.Base(l.filePath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	pattern := filepath.Join(dir, name+".*"+ext)

	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) <= l.maxBackups {
		return
	}

	type backup struct {
		path string
		time time.Time
	}
	backups := make([]backup, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		backups = append(backups, backup{match, info.ModTime()})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].time.Before(backups[j].time)
	})

	for i := 0; i < len(backups)-l.maxBackups; i++ {
		os.Remove(backups[i].path)
	}
}

// Debug logs debug level messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info logs info level messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn logs warning level messages
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error logs error level messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

// Close closes the log file if one is open.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}
