package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/almforge/go-polarion"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of polarion",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("polarion version %s\n", strings.TrimSpace(polarion.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
