package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cryptoadvance/specter-bootloader-go/kat"
)

func newSelftestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Run the known-answer cryptographic self-tests standalone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !kat.RunAll() {
				return fmt.Errorf("known-answer self-test failed")
			}
			log.Infow("known-answer self-test passed")
			return nil
		},
	}
}
