// Command screendelta highlights the parts of the screen that changed
// since the previous capture in a transparent overlay.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "screendelta:", err)
		os.Exit(1)
	}
}
