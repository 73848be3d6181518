package main

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cryptoadvance/specter-bootloader-go/sig"
	"github.com/cryptoadvance/specter-bootloader-go/simplatform"
	"github.com/cryptoadvance/specter-bootloader-go/upgrade"
	"github.com/cryptoadvance/specter-bootloader-go/util"
)

var inspectFlags struct {
	format string
}

// sectionSummary is the JSON/YAML-friendly view of one decoded section,
// since upgrade.SectionMeta carries unexported offsets not meant for
// display.
type sectionSummary struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	Size    string `json:"size" yaml:"size"`
}

type inspectSummary struct {
	Bootloader *sectionSummary `json:"bootloader,omitempty" yaml:"bootloader,omitempty"`
	Firmware   *sectionSummary `json:"firmware,omitempty" yaml:"firmware,omitempty"`
	SignatureN int             `json:"signature_records" yaml:"signature_records"`
}

func newInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect UPGRADE_FILE",
		Short: "Inspect an upgrade file's sections without applying it",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
	cmd.Flags().StringVar(&inspectFlags.format, "format", "text", "output format: text, json or yaml")
	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	switch inspectFlags.format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unsupported --format %q (supported: text, json, yaml)", inspectFlags.format)
	}

	file, err := simplatform.OpenFile(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	md, err := upgrade.ReadMetadata(file)
	if err != nil {
		return fmt.Errorf("reading upgrade file: %w", err)
	}

	summary := inspectSummary{SignatureN: len(md.SigPayload) / sig.RecordSize}
	if md.BootSection.Loaded {
		summary.Bootloader = sectionSummaryOf(md.BootSection)
	}
	if md.MainSection.Loaded {
		summary.Firmware = sectionSummaryOf(md.MainSection)
	}

	out := cmd.OutOrStdout()
	switch inspectFlags.format {
	case "text":
		if summary.Bootloader != nil {
			fmt.Fprintf(out, "Bootloader: version %s, %s\n", summary.Bootloader.Version, summary.Bootloader.Size)
		}
		if summary.Firmware != nil {
			fmt.Fprintf(out, "Firmware  : version %s, %s\n", summary.Firmware.Version, summary.Firmware.Size)
		}
		fmt.Fprintf(out, "Signatures: %d record(s)\n", summary.SignatureN)
	case "json":
		b, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal json: %w", err)
		}
		fmt.Fprintln(out, string(b))
	case "yaml":
		b, err := yaml.Marshal(summary)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		fmt.Fprintln(out, string(b))
	}
	return nil
}

func sectionSummaryOf(sect upgrade.SectionMeta) *sectionSummary {
	verStr, ok := util.VersionToStr(sect.Header.PlVer)
	if !ok {
		verStr = "invalid"
	}
	return &sectionSummary{
		Name:    sect.Header.Name,
		Version: verStr,
		Size:    humanize.Bytes(uint64(sect.Header.PlSize)),
	}
}
