// Package catalog resolves scanned or typed input to a canonical [models.TrackRef].
//
// The catalog is a JSON object mapping track URIs to card metadata:
//
//	{
//	  "spotify:track:4uLU6hMCjMI75M1A2tKUQC": {"title": "Never Gonna Give You Up", "year": 1987, "id": "12"}
//	}
//
// Key order is significant: card number N is the Nth key. [Resolver] loads the file
// (or URL) once, on first use, and never mutates it afterwards.
//
// Resolution order for [Resolver.Resolve]:
//  1. canonical URI
//  2. open.spotify.com share URL
//  3. exact catalog key
//  4. alternate identifier (id, code, shortId)
//  5. positive integer N, optionally zero-padded, as the 1-based Nth entry
package catalog
