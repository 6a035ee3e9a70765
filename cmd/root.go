package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "scct-predictions",
	Short: "Twitch prediction orchestration for StarCraft casting",
	Long: `Drives Twitch channel predictions from StarCraft Casting Tool match
state. The service consumes score updates over WebSocket, opens a prediction
when a match starts, locks betting when the window closes, and pays out the
winning side when the match ends.

Manual Stream Deck commands (create, lock, payout, cancel) are accepted over
HTTP and serialize with the automatic flow.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
