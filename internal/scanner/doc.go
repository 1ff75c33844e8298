// Package scanner turns camera frames into scan payloads.
//
// A [Session] opens a [Camera] (rear-facing preferred), samples frames at a fixed
// interval, hands each to a [Decoder], and on the first decoded payload releases the
// camera and passes the [Normalize]d payload to its handler. The camera is released
// on every exit path: success, [Session.Close], losing visibility, the inactivity
// timeout, and failed opens that race a close.
//
// Adapters:
//   - [DirCamera] reads the newest image dropped into a directory (webcam capture tools, phone sync folders)
//   - [QRDecoder] decodes QR codes with gozxing
package scanner
