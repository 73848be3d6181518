// Command boot-sim is a host-side simulator for the bootloader core: it
// builds signed upgrade files, runs a simulated upgrade pass against a
// flash image on disk, inspects upgrade files, and runs
// the cryptographic self-tests standalone.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var log *zap.SugaredLogger

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "boot-sim",
		Short:         "Simulator for the specter-bootloader-go firmware upgrade core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newBuildCommand(),
		newRunCommand(),
		newInspectCommand(),
		newSelftestCommand(),
	)
	return root
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "boot-sim: initializing logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log = logger.Sugar()

	if err := newRootCommand().Execute(); err != nil {
		log.Errorw("command failed", "error", err)
		os.Exit(1)
	}
}
