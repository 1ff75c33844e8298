// Package repositories implements SQLite persistence for hitster.
//
// Key Implementations:
//   - [PreferenceRepository] : key/value store standing in for browser local storage (token, playback mode)
//   - [PlayRepository] : play history, one row per successful playback start
//
// Tables are created by the embedded migrations in [shared.RunMigrations].
package repositories
