// Package scoring turns code submissions into scores, levels and leaderboard ranks.
//
// Every function in this package is pure: inputs are plain values already
// fetched by the caller and nothing is cached between calls.
package scoring

import "errors"

var (
	// ErrInvalidInput reports malformed submission fields or arguments.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidLevel reports a numeric level outside 1..5.
	ErrInvalidLevel = errors.New("invalid level")
	// ErrEmptyDataset reports a query against a leaderboard with no entries.
	ErrEmptyDataset = errors.New("empty dataset")
	// ErrNotRanked reports a candidate that does not appear on a leaderboard.
	ErrNotRanked = errors.New("candidate not ranked")
)
