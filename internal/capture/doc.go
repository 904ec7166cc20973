// Package capture runs the stream directions of the engine: video capture,
// audio record and audio playout. Each direction owns one external process,
// one worker goroutine paced by a cadence loop, and one buffer allocated
// at Start and released at Stop.
//
// Shutdown depends on the process handle: a worker blocked in a pipe read
// is only released when Stop closes the handle. Stop therefore closes the
// process before joining the worker.
//
// Downstream callbacks run without the stream's state lock held. A callback
// that wants the stream to end must call RequestStop; calling Stop from a
// callback deadlocks because Stop waits for the callback to return.
package capture
