// Package ambient drives the side effects around playback that are not playback itself.
//
// [WakeLock] keeps the machine awake while a preview plays and the surface is
// visible, re-acquiring the lock when the platform drops it. [Mirror] copies the
// current track's catalog title and year into a [MediaSession] and follows the
// provider's play state. [Feedback] and [HoldGesture] acknowledge the
// hold-to-reveal gesture with a vibration, a tone and a flash.
package ambient
