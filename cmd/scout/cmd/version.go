package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scout version %s\n", version)
		fmt.Println("An equity setup scanner with AI-advised, risk-managed execution")
		fmt.Println("https://github.com/rustyeddy/scout")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
