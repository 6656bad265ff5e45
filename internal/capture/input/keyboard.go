package input

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Linux input_event on 64-bit: timeval (16 bytes), type, code, value.
const (
	eventSize  = 24
	evKey      = 0x01
	keyRelease = 0
	keyPress   = 1
	keyRepeat  = 2
)

// KeyboardTracker records the time of the last key press read from an
// evdev device.
type KeyboardTracker struct {
	devicePath string
	open       func(path string) (io.ReadCloser, error)
	now        func() time.Time
	logger     *zap.Logger

	mu        sync.Mutex
	lastPress time.Time
	presses   int
	failed    bool
}

// NewKeyboardTracker finds a keyboard device. An empty devicePath means
// autodetect.
func NewKeyboardTracker(devicePath string, logger *zap.Logger) *KeyboardTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if devicePath == "" {
		devicePath = findKeyboardDevice()
	}
	return &KeyboardTracker{
		devicePath: devicePath,
		open:       func(path string) (io.ReadCloser, error) { return os.Open(path) },
		now:        time.Now,
		logger:     logger,
	}
}

// Device returns the evdev path in use, or "" if none was found.
func (k *KeyboardTracker) Device() string {
	return k.devicePath
}

// Available checks that the device exists and is readable.
func (k *KeyboardTracker) Available() bool {
	if k.devicePath == "" {
		return false
	}
	f, err := os.Open(k.devicePath)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// Run reads events until ctx is done. Closing the device unblocks the read.
//
// A device that cannot be opened or read (unplugged, permissions revoked)
// turns the keyboard channel off and Run returns nil: the rest of the
// pipeline keeps sampling without keyboard input.
func (k *KeyboardTracker) Run(ctx context.Context) error {
	f, err := k.open(k.devicePath)
	if err != nil {
		k.disable(fmt.Errorf("open keyboard device: %w", err))
		return nil
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = f.Close()
	}()

	k.logger.Info("keyboard tracking started", zap.String("device", k.devicePath))
	err = k.readEvents(f)
	if err != nil && ctx.Err() == nil {
		k.disable(err)
	}
	return nil
}

func (k *KeyboardTracker) disable(err error) {
	k.logger.Warn("keyboard channel disabled",
		zap.String("device", k.devicePath),
		zap.Error(err))
	k.mu.Lock()
	k.failed = true
	k.mu.Unlock()
}

// Failed reports whether the device stopped delivering events.
func (k *KeyboardTracker) Failed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.failed
}

func (k *KeyboardTracker) readEvents(r io.Reader) error {
	buf := make([]byte, eventSize)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read keyboard event: %w", err)
		}
		k.processEvent(buf)
	}
}

func (k *KeyboardTracker) processEvent(buf []byte) {
	eventType := binary.LittleEndian.Uint16(buf[16:18])
	value := int32(binary.LittleEndian.Uint32(buf[20:24]))
	if eventType != evKey || (value != keyPress && value != keyRepeat) {
		return
	}

	k.mu.Lock()
	k.lastPress = k.now()
	k.presses++
	k.mu.Unlock()
}

// ActiveWithin reports whether a key was pressed in the last d. It is
// always false once the device has failed.
func (k *KeyboardTracker) ActiveWithin(d time.Duration) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return !k.failed && !k.lastPress.IsZero() && k.now().Sub(k.lastPress) <= d
}

// Presses returns the number of key presses seen so far.
func (k *KeyboardTracker) Presses() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.presses
}

// findKeyboardDevice prefers /dev/input/by-id and falls back to scanning
// /proc/bus/input/devices.
func findKeyboardDevice() string {
	if matches, _ := filepath.Glob("/dev/input/by-id/*-kbd"); len(matches) > 0 {
		return matches[0]
	}

	f, err := os.Open("/proc/bus/input/devices")
	if err != nil {
		return ""
	}
	defer f.Close()
	return scanDevices(f)
}

func scanDevices(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	var handler string
	var keyboard bool
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if keyboard && handler != "" {
				return handler
			}
			handler, keyboard = "", false
		case strings.HasPrefix(line, "H: Handlers="):
			for _, p := range strings.Fields(line) {
				if strings.HasPrefix(p, "event") {
					handler = "/dev/input/" + p
				}
			}
		case strings.Contains(line, "EV=120013"),
			strings.HasPrefix(line, "N: ") && strings.Contains(strings.ToLower(line), "keyboard"):
			keyboard = true
		}
	}
	if keyboard && handler != "" {
		return handler
	}
	return ""
}
