// ABOUTME: Point source abstraction for the producer
// ABOUTME: Named constructors for the built-in sources
package producer

import (
	"context"
	"fmt"
	"sort"

	"github.com/multivox/vortexstream/pkg/protocol"
)

// Source provides one point batch per frame
type Source interface {
	// ReadBatch returns the next complete snapshot of the cloud. It may
	// block until a frame is available. io.EOF ends the stream.
	ReadBatch(ctx context.Context) ([]protocol.Point, error)

	// Name describes the source for logs
	Name() string

	// Close releases source resources
	Close() error
}

var builtinSources = map[string]func() Source{
	"grid":      func() Source { return NewGridPattern() },
	"axes":      func() Source { return NewAxesPattern() },
	"wheel":     func() Source { return NewColourWheel() },
	"synthetic": func() Source { return NewDepthStream(NewSyntheticDepth(), DefaultProjectorConfig()) },
}

// NewSource creates a built-in source by name.
func NewSource(name string) (Source, error) {
	ctor, ok := builtinSources[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q (available: %v)", name, SourceNames())
	}
	return ctor(), nil
}

// SourceNames lists the built-in sources.
func SourceNames() []string {
	names := make([]string, 0, len(builtinSources))
	for name := range builtinSources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
