// Package dedupe provides message-id deduplication using a time-based cache
// so a reconnecting session never applies the same message to its view twice.
package dedupe
