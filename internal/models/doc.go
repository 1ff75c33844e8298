// Package models defines the data types shared by the hitster packages.
//
// Value types:
//   - [TrackRef] : canonical provider track URI, the only form handed to playback
//   - [CatalogEntry] : title and year printed on a game card, plus alternate codes
//   - [PlaybackMode] : timed preview or full track
//
// Persistent entities implement [Model]:
//   - [Play] : one successful playback start, kept as game history
//
// The [Repository] interface defines the CRUD surface repositories expose for them.
package models
