// Package process runs an external decoder or encoder bound to a byte
// stream.
//
// A Pipe owns exactly one subprocess and one directional handle: the
// process stdout for read directions, or its stdin for playout. Stderr is
// streamed line by line into a logger through a pluggable LogParser.
//
// Reads block until the buffer is full or the stream ends. A short or zero
// count with a nil error is end-of-stream, not a failure. Stop closes our
// end of the pipe first; that close is the only way to unblock a Read that
// is in flight. It then sends SIGINT to the process group, waits for a
// graceful exit and force-kills on timeout.
//
//	pipe, err := process.Start("capture", "ffmpeg -i in.mp4 -f rawvideo pipe:1", media.Capture, process.Options{
//	    Logger:    logger,
//	    LogParser: ffmpeg.ParseLogLevel,
//	})
//	if err != nil {
//	    return err
//	}
//	defer pipe.Stop()
//	n, err := pipe.Read(frame)
package process
