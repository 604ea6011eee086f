// Package source fetches raw posts from upstream platforms.
//
// Reddit queries the public search endpoint once per search term, pacing
// requests with a rate limiter. File replays posts from a JSON or JSON-lines
// dump and is used for seeding and offline runs.
package source
