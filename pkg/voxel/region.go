//go:build unix

// ABOUTME: Shared memory region holding the voxel buffer
// ABOUTME: Owner creates and sizes it, other processes attach by name
package voxel

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// DefaultRegionName is the well-known name the display driver maps.
const DefaultRegionName = "vortex_double_buffer"

// ShmDir is the directory backing POSIX shared memory objects.
var ShmDir = "/dev/shm"

// Region is a mapped shared memory object holding one Buffer.
type Region struct {
	name   string
	file   *os.File
	data   []byte
	buffer *Buffer

	closeOnce sync.Once
	closeErr  error
}

// Create creates (or truncates to size) the named region, maps it read-write
// and zeroes both pages. The selector is reset to page 0; existing metadata
// is preserved.
func Create(name string) (*Region, error) {
	path := regionPath(name)

	old := unix.Umask(0)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0666)
	unix.Umask(old)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared region %s: %w", path, err)
	}

	if err := f.Truncate(RegionSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to size shared region %s: %w", path, err)
	}

	r, err := mapRegion(name, f, false)
	if err != nil {
		return nil, err
	}

	buf := r.buffer
	_ = buf.Clear(0)
	_ = buf.Clear(1)
	_ = buf.Publish(0)
	return r, nil
}

// Attach maps an existing region. Read-only regions give a Buffer that
// refuses mutation.
func Attach(name string, readOnly bool) (*Region, error) {
	path := regionPath(name)

	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open shared region %s: %w", path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat shared region %s: %w", path, err)
	}
	if fi.Size() < RegionSize {
		f.Close()
		return nil, fmt.Errorf("shared region %s is %d bytes, want %d", path, fi.Size(), RegionSize)
	}

	return mapRegion(name, f, readOnly)
}

func mapRegion(name string, f *os.File, readOnly bool) (*Region, error) {
	prot := unix.PROT_READ | unix.PROT_WRITE
	if readOnly {
		prot = unix.PROT_READ
	}

	data, err := unix.Mmap(int(f.Fd()), 0, RegionSize, prot, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to map shared region %s: %w", name, err)
	}

	buf, err := wrap(data, readOnly)
	if err != nil {
		unix.Munmap(data)
		f.Close()
		return nil, err
	}

	return &Region{
		name:   name,
		file:   f,
		data:   data,
		buffer: buf,
	}, nil
}

// Name returns the region name.
func (r *Region) Name() string {
	return r.name
}

// Path returns the backing file path.
func (r *Region) Path() string {
	return regionPath(r.name)
}

// Buffer returns the voxel buffer view over the mapping. It must not be used
// after Close.
func (r *Region) Buffer() *Buffer {
	return r.buffer
}

// Close unmaps the region. The shared object itself stays in place for
// other processes.
func (r *Region) Close() error {
	r.closeOnce.Do(func() {
		if err := unix.Munmap(r.data); err != nil {
			r.closeErr = fmt.Errorf("failed to unmap shared region %s: %w", r.name, err)
		}
		if err := r.file.Close(); err != nil && r.closeErr == nil {
			r.closeErr = err
		}
	})
	return r.closeErr
}

// Remove deletes the named shared object.
func Remove(name string) error {
	return os.Remove(regionPath(name))
}

func regionPath(name string) string {
	return filepath.Join(ShmDir, filepath.Base(name))
}
