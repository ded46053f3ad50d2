// Package process supervises external subprocesses such as ffmpeg.
//
// Process wraps os/exec for a single subprocess: SIGINT on Shutdown,
// SIGKILL after a grace period, and output streamed either line by line
// through a LogParser and OutputHandler or raw to a StdoutConsumer.
//
// Pool runs prepared processes under an ID, at most one per ID, and
// reports every exit through an ExitFunc. Device capture keys the pool by
// device ID.
package process
