// ABOUTME: Double-buffered voxel volume shared with the display driver
// ABOUTME: Package documentation and memory layout contract
// Package voxel implements the page-flipped voxel frame buffer that the
// ingestion pipeline writes and the display driver scans out.
//
// The buffer is one contiguous region of RegionSize bytes:
//
//	[0, PageSize)             page 0
//	[PageSize, 2*PageSize)    page 1
//	[HeaderOffset, +8)        header
//
// Cells inside a page are addressed y-major with z fastest:
//
//	index = y*StrideY + x*StrideX + z*StrideZ
//
// The header holds, in host byte order:
//
//	+0 page                    uint8   active page selector (0 or 1)
//	+1 bits_per_channel        uint8
//	+2 flags                   uint16
//	+4 revolutions_per_minute  uint16
//	+6 microseconds_per_frame  uint16
//
// Only the writer mutates cells, and only in the inactive page. Publish flips
// the selector with one atomic store, after which readers that call
// ReadActive see the new frame.
//
// Example:
//
//	region, err := voxel.Attach(voxel.DefaultRegionName, false)
//	buf := region.Buffer()
//	page := 1 - buf.ActivePage()
//	_ = buf.Clear(page)
//	_ = buf.Write(page, 64, 64, 32, voxel.RGB(255, 0, 0))
//	_ = buf.Publish(page)
package voxel
