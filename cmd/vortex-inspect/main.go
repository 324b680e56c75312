// ABOUTME: Read-only scan-out inspector for the shared voxel region
// ABOUTME: Prints the header, active page and lit cells, optionally on an interval
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/multivox/vortexstream/pkg/voxel"
)

var (
	shmName = flag.String("shm-name", voxel.DefaultRegionName, "Shared memory region name")
	watch   = flag.Duration("watch", 0, "Repeat every interval (0: print once)")
	slices  = flag.Bool("slices", false, "Print lit cell counts per z slice")
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
)

func main() {
	flag.Parse()

	region, err := voxel.Attach(*shmName, true)
	if err != nil {
		log.Fatalf("Attach failed: %v", err)
	}
	defer region.Close()

	buf := region.Buffer()
	report(buf)
	if *watch <= 0 {
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*watch)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			report(buf)
		case <-sigChan:
			return
		}
	}
}

func report(buf *voxel.Buffer) {
	meta := buf.Metadata()
	page := buf.ReadActive()

	var perSlice [voxel.SizeZ]int
	var first [3]int
	lit := 0
	page.Each(func(x, y, z int, c voxel.Pixel) {
		if lit == 0 {
			first = [3]int{x, y, z}
		}
		lit++
		perSlice[z]++
	})

	fmt.Printf("%s %s  %s %d  %s %d  %s %d bpc, flags 0x%02x, %d rpm, %d us/frame\n",
		labelStyle.Render("time"), time.Now().Format("15:04:05.000"),
		labelStyle.Render("page"), page.Number(),
		labelStyle.Render("lit"), lit,
		labelStyle.Render("display"), meta.BitsPerChannel, uint16(meta.Flags),
		meta.RevolutionsPerMinute, meta.MicrosecondsPerFrame)

	if lit > 0 {
		c, _ := page.At(first[0], first[1], first[2])
		r, g, b := c.RGB()
		fmt.Printf("  first lit cell (%d,%d,%d) = 0x%02x rgb(%d,%d,%d)\n", first[0], first[1], first[2], uint8(c), r, g, b)
	}

	if *slices {
		peak := 1
		for _, n := range perSlice {
			peak = max(peak, n)
		}
		for z := voxel.SizeZ - 1; z >= 0; z-- {
			if perSlice[z] == 0 {
				continue
			}
			width := perSlice[z] * 40 / peak
			fmt.Printf("  z=%2d %6d %s\n", z, perSlice[z], barStyle.Render(fmt.Sprintf("%-40s", strings.Repeat("#", max(width, 1)))))
		}
	}
}
