// Package device manages the remote output device playback is sent to.
//
// A [Controller] owns the device handle and its lifecycle:
//
//	Uninitialized -> Connecting -> Ready <-> NotReady
//
// The player behind it is an adapter satisfying [Player]; it reports lifecycle
// events through the [Events] interface, one method per event kind. [ConnectPlayer]
// is the Spotify Connect adapter, which watches the account's device list for a
// named device.
//
// The controller tracks two flags per device id:
//   - activated: the device accepted a start-audio gesture and its volume was primed
//   - transferred: the account's playback was moved to the device
//
// Both reset whenever the device id changes.
package device
