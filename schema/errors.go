package schema

import "errors"

// Errors returned by the scoring engine and the rating workflow.
var (
	// ErrUnknownMetric means a metric key is not registered in the catalog.
	ErrUnknownMetric = errors.New("unknown metric")

	// ErrInvalidRating means a rating is out of range or targets a metric that is not peer rated.
	ErrInvalidRating = errors.New("invalid rating")

	// ErrSelfRatingForbidden means a rater tried to rate a subject they own.
	ErrSelfRatingForbidden = errors.New("self rating forbidden")

	// ErrMalformedPeerData means a stored peer rating value is in neither recognized shape.
	ErrMalformedPeerData = errors.New("malformed peer rating data")

	// ErrSubjectNotFound means no subject is stored under the given id.
	ErrSubjectNotFound = errors.New("subject not found")
)

// ErrCacheMiss means the score cache has no entry for a key.
var ErrCacheMiss = errors.New("cache miss")
