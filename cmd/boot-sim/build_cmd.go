package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/spf13/cobra"

	"github.com/cryptoadvance/specter-bootloader-go/section"
	"github.com/cryptoadvance/specter-bootloader-go/sig"
	"github.com/cryptoadvance/specter-bootloader-go/sigmsg"
	"github.com/cryptoadvance/specter-bootloader-go/util"
)

var buildFlags struct {
	mainImage  string
	bootImage  string
	mainVer    string
	bootVer    string
	platformID string
	keys       []string
	output     string
}

func newBuildCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a signed upgrade file from one or more firmware images",
		Args:  cobra.NoArgs,
		RunE:  runBuild,
	}
	cmd.Flags().StringVar(&buildFlags.mainImage, "main", "", "path to the Main Firmware payload")
	cmd.Flags().StringVar(&buildFlags.bootImage, "boot", "", "path to the Bootloader payload")
	cmd.Flags().StringVar(&buildFlags.mainVer, "main-version", "", "Main Firmware version (major.minor.patch[-rcN])")
	cmd.Flags().StringVar(&buildFlags.bootVer, "boot-version", "", "Bootloader version (major.minor.patch[-rcN])")
	cmd.Flags().StringVar(&buildFlags.platformID, "platform", "", "target platform identifier")
	cmd.Flags().StringArrayVar(&buildFlags.keys, "key", nil, "hex-encoded secp256k1 private key to sign with (repeatable)")
	cmd.Flags().StringVar(&buildFlags.output, "output", "specter_upgrade.bin", "output file path")
	return cmd
}

func runBuild(cmd *cobra.Command, args []string) error {
	if buildFlags.mainImage == "" && buildFlags.bootImage == "" {
		return fmt.Errorf("at least one of --main or --boot is required")
	}
	if len(buildFlags.keys) == 0 {
		return fmt.Errorf("at least one --key is required")
	}
	if buildFlags.platformID == "" {
		return fmt.Errorf("--platform is required")
	}

	var sections []byte
	var hashes []section.Hash

	if buildFlags.bootImage != "" {
		ver, err := parseVersionFlag(buildFlags.bootVer)
		if err != nil {
			return fmt.Errorf("--boot-version: %w", err)
		}
		raw, hash, err := buildPayloadSection(section.BootSectionName, buildFlags.bootImage, ver, buildFlags.platformID)
		if err != nil {
			return fmt.Errorf("building bootloader section: %w", err)
		}
		sections = append(sections, raw...)
		hashes = append(hashes, hash)
	}
	if buildFlags.mainImage != "" {
		ver, err := parseVersionFlag(buildFlags.mainVer)
		if err != nil {
			return fmt.Errorf("--main-version: %w", err)
		}
		raw, hash, err := buildPayloadSection(section.MainSectionName, buildFlags.mainImage, ver, buildFlags.platformID)
		if err != nil {
			return fmt.Errorf("building main firmware section: %w", err)
		}
		sections = append(sections, raw...)
		hashes = append(hashes, hash)
	}

	message, err := sigmsg.Make(hashes)
	if err != nil {
		return fmt.Errorf("building signature message: %w", err)
	}
	sigPayload, err := signWithKeys(buildFlags.keys, message)
	if err != nil {
		return fmt.Errorf("signing: %w", err)
	}
	sigSection, err := buildSignatureSection(sigPayload)
	if err != nil {
		return fmt.Errorf("building signature section: %w", err)
	}

	out := append(sections, sigSection...)
	if err := os.WriteFile(buildFlags.output, out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", buildFlags.output, err)
	}
	log.Infow("built upgrade file", "path", buildFlags.output, "size", len(out))
	return nil
}

func parseVersionFlag(s string) (uint32, error) {
	var major, minor, patch, rc uint32
	rc = 99
	n, err := fmt.Sscanf(s, "%d.%d.%d-rc%d", &major, &minor, &patch, &rc)
	if n < 3 || err != nil {
		n, err = fmt.Sscanf(s, "%d.%d.%d", &major, &minor, &patch)
		if n != 3 || err != nil {
			return 0, fmt.Errorf("malformed version %q, want major.minor.patch[-rcN]: %w", s, err)
		}
	}
	return util.EncodeVersion(major, minor, patch, rc)
}

func buildPayloadSection(name, path string, ver uint32, platformID string) ([]byte, section.Hash, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, section.Hash{}, err
	}
	attrList, ok := section.BuildAttrList(map[section.Attr][]byte{
		section.AttrPlatform: []byte(platformID),
		section.AttrBaseAddr: section.AttrUint(0),
	})
	if !ok {
		return nil, section.Hash{}, fmt.Errorf("attribute list does not fit")
	}
	h := &section.Header{
		Name:     name,
		PlVer:    ver,
		PlSize:   uint32(len(payload)),
		PlCrc:    util.CRC32(payload),
		AttrList: attrList,
	}
	raw := h.Encode()
	hash, ok := section.HashOverBuffer(h, raw[:section.HeaderSize], payload)
	if !ok {
		return nil, section.Hash{}, fmt.Errorf("computing section hash")
	}
	return append(raw, payload...), hash, nil
}

func buildSignatureSection(payload []byte) ([]byte, error) {
	attrList, ok := section.BuildAttrList(map[section.Attr][]byte{
		section.AttrAlgorithm: []byte("secp256k1-sha256"),
	})
	if !ok {
		return nil, fmt.Errorf("attribute list does not fit")
	}
	h := &section.Header{
		Name:     section.SignatureSectionName,
		PlVer:    1,
		PlSize:   uint32(len(payload)),
		PlCrc:    util.CRC32(payload),
		AttrList: attrList,
	}
	return append(h.Encode(), payload...), nil
}

// signWithKeys signs message with each hex-encoded private key in keys,
// producing one (fingerprint, signature) record per key.
func signWithKeys(keys []string, message string) ([]byte, error) {
	var out []byte
	for i, hexKey := range keys {
		raw, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		priv, pub := btcec.PrivKeyFromBytes(raw)
		var pk sig.PubKey
		copy(pk[:], pub.SerializeUncompressed())

		s, err := sig.SignMessage(priv, []byte(message))
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}

		fp := sig.FingerprintOf(pk)
		out = append(out, fp[:]...)
		out = append(out, s[:]...)
	}
	return out, nil
}
