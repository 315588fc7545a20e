// Package nativelog writes the service log to stdout and to one file per day.
package nativelog

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EnvLogDir   = "NINE3V_LOG_DIR"
	filePerm    = 0o644
	dirPerm     = 0o755
	filePrefix  = "versions_"
	dayLayout   = "2006-01-02"
	stampLayout = "2006-01-02 15:04:05.000"
)

// ResolveDir picks the log directory: dir when set, then $NINE3V_LOG_DIR,
// then ./logs or ~/.nine3v/log, whichever exists.
func ResolveDir(dir string) string {
	if dir = strings.TrimSpace(dir); dir != "" {
		return dir
	}
	if env := strings.TrimSpace(os.Getenv(EnvLogDir)); env != "" {
		return env
	}
	local := filepath.Join(".", "logs")
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		user := filepath.Join(home, ".nine3v", "log")
		if _, err := os.Stat(local); err != nil {
			if info, err := os.Stat(user); err == nil && info.IsDir() {
				return user
			}
		}
	}
	return local
}

// DailyFilename is the file a line logged at t lands in.
func DailyFilename(t time.Time) string {
	return filePrefix + t.Format(dayLayout) + ".log"
}

// Writer appends to the current day's file and switches files at midnight.
type Writer struct {
	mu   sync.Mutex
	dir  string
	now  func() time.Time
	day  string
	file *os.File
}

func NewWriter(dir string) (*Writer, error) {
	dir = ResolveDir(dir)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, err
	}
	return &Writer{dir: dir, now: time.Now}, nil
}

func (w *Writer) Dir() string { return w.dir }

func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.rotate(); err != nil {
		return 0, err
	}
	return w.file.Write(p)
}

// rotate opens today's file when the day changed or nothing is open yet.
func (w *Writer) rotate() error {
	day := w.now().Format(dayLayout)
	if w.file != nil && day == w.day {
		return nil
	}
	file, err := os.OpenFile(filepath.Join(w.dir, filePrefix+day+".log"),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return err
	}
	if w.file != nil {
		_ = w.file.Close()
	}
	w.file, w.day = file, day
	return nil
}

func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// NewZapLogger logs human-readable lines to stdout and JSON lines to the
// daily file. debug lowers both to Debug.
func NewZapLogger(dir string, debug bool) (*zap.Logger, error) {
	writer, err := NewWriter(dir)
	if err != nil {
		return nil, err
	}

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if debug {
		level.SetLevel(zap.DebugLevel)
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(stampLayout)

	consoleConfig := encoderConfig
	if debug {
		consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleConfig), zapcore.Lock(os.Stdout), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), writer, level),
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).Named("nine3v")
	_ = zap.RedirectStdLog(logger)
	return logger, nil
}
