// Package playback turns a resolved track into sound on the output device and stops it again.
//
// # Sequencer
//
// [Sequencer] runs playback attempts one at a time, in the order they were
// requested. Each attempt walks the same steps:
//
//  1. Precondition: a token and a device id must be present, and a track selected
//  2. Activation: the device's one-time audio unlock (see device.Controller.EnsureActivated)
//  3. Transfer: route playback to the device, autoplay disabled, only when not already transferred
//  4. Start: play the track on the device
//
// A failed step resets the transfer flag so the next attempt transfers again.
// Failures never cancel requests queued behind them.
//
// # Progress Reporting
//
// Attempts emit an [Update] per [Phase] on an optional channel. Sends use
// select with default so a slow reader never stalls playback.
//
// # Countdown
//
// [Countdown] stops the preview after a fixed number of seconds in timed mode
// and shows "∞" in full mode. The mode is a persisted preference.
package playback
