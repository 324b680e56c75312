// ABOUTME: Point cloud producer package
// ABOUTME: Sources, depth projection and the paced streaming loop
// Package producer captures point clouds and streams them to a vortex
// ingestion server.
//
// A Source yields one complete batch of voxel points per call. Depth
// cameras plug in through DepthSource and are turned into voxel points by a
// Projector and a Deduper; test patterns and a synthetic depth scene are
// provided for running without hardware.
//
// Basic usage:
//
//	src, _ := producer.NewSource("synthetic")
//	p := producer.New(producer.Config{ServerAddr: "vortex.local:22104"}, src)
//	err := p.Run(ctx)
package producer
