package theme

import (
	"fmt"
)

// Banner returns the CLI banner.
func Banner() string {
	const cyan = "\033[36m"
	const magenta = "\033[35m"
	const yellow = "\033[33m"
	const reset = "\033[0m"

	art := "" +
		"   o---o   " + magenta + "PEERLINK" + reset + "   o---o\n" +
		cyan + "    \\ /  \\       /  \\ /\n" + reset +
		cyan + "     o----o-----o----o\n" + reset +
		yellow + "    ─────────────────────────\n" + reset +
		"   people you may know, explained\n"
	return art
}

// PrintBanner prints the banner to stdout.
func PrintBanner() {
	fmt.Print(Banner())
}
