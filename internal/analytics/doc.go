// Package analytics holds the deterministic number tools the assistant can
// call: combination mining, wheeling systems, horoscope sets and player
// performance analysis. Every function is pure apart from an injected random
// source and filters inputs to the playable range.
package analytics
