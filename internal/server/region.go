//go:build unix

// ABOUTME: Shared region acquisition for the server binary
// ABOUTME: Maps the voxel buffer as owner or attached writer
package server

import (
	"log"

	"github.com/multivox/vortexstream/pkg/voxel"
)

// OpenRegion maps the named shared region read-write. With create set the
// server becomes the owner and sizes and zeroes it; otherwise the region
// must already exist. Failures are *ResourceError.
func OpenRegion(name string, create bool) (*voxel.Region, error) {
	var (
		region *voxel.Region
		err    error
	)
	if create {
		region, err = voxel.Create(name)
	} else {
		region, err = voxel.Attach(name, false)
	}
	if err != nil {
		return nil, &ResourceError{Op: "map shared region", Err: err}
	}

	role := "attached"
	if create {
		role = "created"
	}
	log.Printf("Shared region %s %s (%d bytes, active page %d)",
		region.Path(), role, voxel.RegionSize, region.Buffer().ActivePage())
	return region, nil
}
