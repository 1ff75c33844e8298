// Package ui is the game screen: a bubbletea program driving one playback session.
//
// The [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// It has three views:
//  1. [GameView] : status, countdown, reveal and now-playing panel
//  2. [InputView] : type a card number, code or track link
//  3. [CatalogView] : pick a card from the catalog without spoiling it
//
// The session talks back through a [Bridge], which implements the session surface and the
// media session by turning every call into a Msg on a channel. Sequencer progress arrives on a
// second channel. Focus and blur reports stand in for page visibility.
//
// Holding a key cannot be observed directly in a terminal, so the hold gesture treats key
// auto-repeat as the key being held and a pause in repeats as the release.
package ui
