package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cryptoadvance/specter-bootloader-go/bootloader"
	"github.com/cryptoadvance/specter-bootloader-go/platform"
	"github.com/cryptoadvance/specter-bootloader-go/startup"
)

var runFlags struct {
	deviceConfig     string
	bootloaderConfig string
	loadedFrom       uint64
	startupVersion   string
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one bootloader pass against a simulated device",
		Args:  cobra.NoArgs,
		RunE:  runRun,
	}
	cmd.Flags().StringVar(&runFlags.deviceConfig, "device", "", "path to the device YAML config (required)")
	cmd.Flags().StringVar(&runFlags.bootloaderConfig, "config", "", "path to the bootloader YAML config (required)")
	cmd.Flags().Uint64Var(&runFlags.loadedFrom, "loaded-from", 0, "flash address the simulated start-up selector loaded this copy from")
	cmd.Flags().StringVar(&runFlags.startupVersion, "startup-version", "", "start-up selector version reported to the version report (major.minor.patch[-rcN])")
	cmd.MarkFlagRequired("device")
	cmd.MarkFlagRequired("config")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	devCfg, err := loadDeviceConfig(runFlags.deviceConfig)
	if err != nil {
		return err
	}
	blCfg, err := bootloader.LoadConfig(runFlags.bootloaderConfig)
	if err != nil {
		return err
	}
	services, err := newServices(devCfg, newProgressUI(log), log)
	if err != nil {
		return err
	}

	core, err := bootloader.NewCore(services, blCfg)
	if err != nil {
		return fmt.Errorf("initializing bootloader core: %w", err)
	}

	startupArgs := startup.Args{LoadedFrom: platform.Addr(runFlags.loadedFrom)}
	if runFlags.startupVersion != "" {
		ver, err := parseVersionFlag(runFlags.startupVersion)
		if err != nil {
			return fmt.Errorf("--startup-version: %w", err)
		}
		startupArgs.StartupVersion = ver
	}

	status, err := core.Run(startupArgs)
	if err != nil {
		log.Errorw("bootloader run failed", "status", status, "error", err)
		return err
	}
	log.Infow("bootloader run finished", "status", status.String())
	if status.HasError() {
		return fmt.Errorf("bootloader returned %s", status)
	}
	return nil
}
