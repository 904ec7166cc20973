// Package collectors gathers ffmpeg progress reports into metrics.
package collectors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/smazurov/ffpipe/internal/logging"
	"github.com/smazurov/ffpipe/internal/metrics"
)

// FFmpegCollector receives ffmpeg -progress reports on a Unix socket and
// publishes them as metrics for one direction.
type FFmpegCollector struct {
	logger     logging.Logger
	socketPath string
	direction  string

	listener net.Listener
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewFFmpegCollector creates a collector for a direction.
func NewFFmpegCollector(socketPath, direction string) *FFmpegCollector {
	return &FFmpegCollector{
		logger:     logging.GetLogger("metrics").With("direction", direction),
		socketPath: socketPath,
		direction:  direction,
	}
}

// ProgressURL is the value to pass to ffmpeg's -progress option.
func (f *FFmpegCollector) ProgressURL() string {
	return "unix://" + f.socketPath
}

// Start listens on the socket and serves connections until ctx is done or
// Stop is called.
func (f *FFmpegCollector) Start(ctx context.Context) error {
	if err := os.Remove(f.socketPath); err != nil && !os.IsNotExist(err) {
		f.logger.Warn("Failed to clean up old socket file", "error", err)
	}

	listener, err := net.Listen("unix", f.socketPath)
	if err != nil {
		return fmt.Errorf("listen on progress socket: %w", err)
	}
	f.listener = listener
	f.logger.Debug("Progress socket listening", "socket", f.socketPath)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.acceptLoop()
	}()

	go func() {
		<-ctx.Done()
		f.Stop()
	}()
	return nil
}

// Stop closes the socket and removes the direction's progress metrics.
func (f *FFmpegCollector) Stop() error {
	f.stopOnce.Do(func() {
		if f.listener != nil {
			f.listener.Close()
		}
		f.wg.Wait()
		os.Remove(f.socketPath)
		metrics.DeleteFFmpegProgress(f.direction)
	})
	return nil
}

func (f *FFmpegCollector) acceptLoop() {
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				f.logger.Warn("Error accepting connection", "error", err)
			}
			return
		}
		go f.handleConnection(conn)
	}
}

func (f *FFmpegCollector) handleConnection(conn net.Conn) {
	defer conn.Close()
	if err := ReadProgress(conn, func(p metrics.FFmpegProgress) {
		metrics.SetFFmpegProgress(f.direction, p)
	}); err != nil {
		f.logger.Debug("Progress stream ended", "error", err)
	}
}

// ReadProgress parses ffmpeg progress blocks from r, calling report at each
// "progress=" line. Values persist across blocks until ffmpeg updates them.
func ReadProgress(r io.Reader, report func(metrics.FFmpegProgress)) error {
	scanner := bufio.NewScanner(r)
	var current metrics.FFmpegProgress

	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "fps":
			setFloat(&current.FPS, value)
		case "drop_frames":
			setFloat(&current.DroppedFrames, value)
		case "dup_frames":
			setFloat(&current.DuplicateFrames, value)
		case "speed":
			setFloat(&current.Speed, strings.TrimSuffix(value, "x"))
		case "progress":
			report(current)
		}
	}
	return scanner.Err()
}

func setFloat(dst *float64, s string) {
	if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		*dst = v
	}
}
