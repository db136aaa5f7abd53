// Command kstat pretty-prints the kernel's /sys/memfree text ("<total>
// <free>\n", spec.md §6) as thousand-separated byte counts, for a human
// reading over a serial console or a mounted debug filesystem.
package main

import (
	"bufio"
	"fmt"
	"os"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func main() {
	path := "/sys/memfree"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kstat: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	var total, free int64
	if _, err := fmt.Fscanf(bufio.NewReader(f), "%d %d", &total, &free); err != nil {
		fmt.Fprintf(os.Stderr, "kstat: parsing %s: %v\n", path, err)
		os.Exit(1)
	}

	p := message.NewPrinter(language.English)
	p.Printf("total %d bytes, free %d bytes (%.1f%% free)\n",
		total, free, 100*float64(free)/float64(total))
}
