// Package host provides downstream adapters for the capture package: a
// record-to-playout loopback, a tone generator for playout and a frame
// statistics sink for video.
//
// Adapters never block the worker that calls them. When a consumer falls
// behind, the loopback drops the oldest quantum: real-time audio prefers a
// gap over growing latency.
package host
