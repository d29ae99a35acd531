package schema

// Custom string types for type safety.
type (
	// MetricKind represents how a raw metric value is interpreted.
	MetricKind string

	// BusinessSize represents the size class of a product or service provider.
	BusinessSize string

	// SubjectKind represents what is being scored.
	SubjectKind string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the backend for subject storage or score caching.
	DatabaseBackend string
)

// All metric kinds supported.
const (
	BooleanKind        MetricKind = "boolean"
	Bounded0to10Kind   MetricKind = "bounded0to10"
	PercentageKind     MetricKind = "percentage"
	PeerRatedKind      MetricKind = "peerRated"
	StructuredListKind MetricKind = "structuredList"
)

// All business sizes supported.
const (
	MicroSize  BusinessSize = "micro"
	SmallSize  BusinessSize = "small"
	MediumSize BusinessSize = "medium"
	LargeSize  BusinessSize = "large"
)

// All subject kinds supported.
const (
	ProductSubject SubjectKind = "product"
	ServiceSubject SubjectKind = "service"
	UserSubject    SubjectKind = "user"
)

// All output modes supported.
const (
	CSVOut  OutputMode = "csv"
	TextOut OutputMode = "text" // default
	JSONOut OutputMode = "json"
)

// All storage backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	RedisBackend      DatabaseBackend = "redis" // score cache only
	MemoryBackend     DatabaseBackend = "memory"
	NoneBackend       DatabaseBackend = "none" // score cache only
)

// Rating bounds for a single peer rating.
const (
	MinPeerRating = 1
	MaxPeerRating = 10
)

// ValidMetricKinds lists all valid metric kinds.
var ValidMetricKinds = map[MetricKind]struct{}{
	BooleanKind:        {},
	Bounded0to10Kind:   {},
	PercentageKind:     {},
	PeerRatedKind:      {},
	StructuredListKind: {},
}

// ValidBusinessSizes lists all valid business sizes.
var ValidBusinessSizes = map[BusinessSize]struct{}{
	MicroSize:  {},
	SmallSize:  {},
	MediumSize: {},
	LargeSize:  {},
}

// ValidSubjectKinds lists all valid subject kinds.
var ValidSubjectKinds = map[SubjectKind]struct{}{
	ProductSubject: {},
	ServiceSubject: {},
	UserSubject:    {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:  {},
	TextOut: {},
	JSONOut: {},
}

// ValidStoreBackends lists all valid backends for subjects and ratings.
var ValidStoreBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	MemoryBackend:     {},
}

// ValidCacheBackends lists all valid backends for the score cache.
var ValidCacheBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	RedisBackend:      {},
	MemoryBackend:     {},
	NoneBackend:       {},
}
