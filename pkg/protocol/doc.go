// ABOUTME: Vortex stream wire protocol package
// ABOUTME: Defines point records, frame codec and the producer client
// Package protocol implements the vortex point stream wire protocol.
//
// A stream is a sequence of frames. Each frame is
//
//	FF FF FF FF | length (uint32, big-endian) | payload
//
// where payload is a gzip stream whose decompressed bytes are packed
// 4-byte point records (x, y, z, color). The record count is implied by
// the decompressed length; a trailing partial record is discarded.
//
// Example:
//
//	client, err := protocol.Dial(ctx, protocol.Config{ServerAddr: "vortex.local:22104"})
//	err = client.Send(points)
//
//	batch, err := protocol.ReadFrame(conn)
package protocol
