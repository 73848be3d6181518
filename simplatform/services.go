package simplatform

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/cryptoadvance/specter-bootloader-go/platform"
)

// FlashMapConfig is a concrete, statically configured platform.FlashMap.
type FlashMapConfig map[platform.FlashMapItem]platform.Addr

// FlashMapItem implements platform.FlashMap.
func (c FlashMapConfig) FlashMapItem(item platform.FlashMapItem) (platform.Addr, error) {
	addr, ok := c[item]
	if !ok {
		return 0, fmt.Errorf("simplatform: flash map item %d not configured", item)
	}
	return addr, nil
}

// ConsoleUI reports alerts and progress to a zap logger, standing in for a
// real device's display/buzzer in simulation.
type ConsoleUI struct {
	log *zap.SugaredLogger
}

// NewConsoleUI wraps a zap logger as a platform.UI.
func NewConsoleUI(log *zap.SugaredLogger) *ConsoleUI {
	return &ConsoleUI{log: log}
}

// Alert logs the alert and reports it dismissed; there is no interactive
// operator in simulation. A timed alert blocks for timeMs first, while an
// untimed or Forever alert returns at once.
func (c *ConsoleUI) Alert(kind platform.AlertType, caption, text string, timeMs uint32) platform.AlertStatus {
	c.log.Infow("alert", "kind", kind, "caption", caption, "text", text)
	if timeMs != 0 && timeMs != platform.Forever {
		time.Sleep(time.Duration(timeMs) * time.Millisecond)
	}
	return platform.AlertDismissed
}

// Progress logs a progress update.
func (c *ConsoleUI) Progress(caption, operation string, percentX100 uint32) {
	c.log.Infow("progress", "caption", caption, "operation", operation, "percent", float64(percentX100)/100)
}

// FatalError logs text and terminates the process, since simulation has no
// firmware to fall back into.
func (c *ConsoleUI) FatalError(text string) {
	c.log.Errorw("fatal", "text", text)
	os.Exit(1)
}

// Launcher simulates jumping to firmware by recording the call instead of
// transferring control, since a host process has no vector table to jump
// into.
type Launcher struct {
	log      *zap.SugaredLogger
	Launched bool
	Addr     platform.Addr
	Argument uint32
}

// NewLauncher wraps a zap logger as a platform.Launcher.
func NewLauncher(log *zap.SugaredLogger) *Launcher {
	return &Launcher{log: log}
}

// StartFirmware records the jump target/argument instead of transferring
// control.
func (l *Launcher) StartFirmware(addr platform.Addr, argument uint32) error {
	l.Launched = true
	l.Addr = addr
	l.Argument = argument
	l.log.Infow("start firmware", "addr", addr, "argument", argument)
	return nil
}

// Identity reports a fixed platform string.
type Identity string

// PlatformID implements platform.Identity.
func (id Identity) PlatformID() string { return string(id) }

// Services bundles the simulated flash, media, UI, launcher and identity
// into a single platform.Services implementation.
type Services struct {
	*Flash
	FlashMapConfig
	*Media
	*ConsoleUI
	*Launcher
	Identity
}
