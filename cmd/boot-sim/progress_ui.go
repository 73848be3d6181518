package main

import (
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/cryptoadvance/specter-bootloader-go/platform"
)

// progressUI renders upgrade progress on a terminal progress bar instead of
// logging every update, while delegating alerts and fatal errors to the
// zap logger the way simplatform.ConsoleUI does.
type progressUI struct {
	log *zap.SugaredLogger
	bar *progressbar.ProgressBar
}

func newProgressUI(log *zap.SugaredLogger) *progressUI {
	return &progressUI{
		log: log,
		bar: progressbar.NewOptions(10000,
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		),
	}
}

// Progress implements platform.UI, mapping a 0-10000 (0.01%) value onto the
// bar's 0-10000 range and updating its description with the current
// operation.
func (p *progressUI) Progress(caption, operation string, percentX100 uint32) {
	p.bar.Describe(caption + ": " + operation)
	p.bar.Set(int(percentX100))
}

// Alert implements platform.UI by logging and immediately dismissing,
// since there is no interactive operator on the command line.
func (p *progressUI) Alert(kind platform.AlertType, caption, text string, timeMs uint32) platform.AlertStatus {
	p.log.Infow("alert", "kind", kind, "caption", caption, "text", text)
	return platform.AlertDismissed
}

// FatalError implements platform.UI's never-returns contract.
func (p *progressUI) FatalError(text string) {
	p.log.Fatalw("fatal", "text", text)
}
