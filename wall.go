// Package wall contains the version number and shared limits of the wall.
package wall

import "time"

// Version is the current version of the wall.
//
// This variable is set at build time using the -X linker flag. If not set,
// it defaults to "devel".
var Version = "devel"

// BasePrefix is a global prefix for all routes the wall serves.
var BasePrefix = ""

// DefaultDifficulty is the number of leading zero hex characters a
// proof-of-work digest must have.
const DefaultDifficulty = 5

// ChallengeTTL is how long an issued challenge stays live.
const ChallengeTTL = 300 * time.Second

// SweepInterval is how often expired challenges and idle rate limit records
// are evicted.
const SweepInterval = 60 * time.Second

// Rate limit defaults.
const (
	MaxPostsPerHour = 10
	PostCooldown    = 60 * time.Second
	RateLimitWindow = time.Hour
)

// MaxMessageLength is the maximum number of Unicode code points in a message
// after surrounding whitespace is trimmed.
const MaxMessageLength = 280

// Canvas bounds for server-assigned message positions, inclusive.
const (
	CanvasMin = 200.0
	CanvasMax = 2800.0
)

// Read limits for GET /wall.
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// Palette is the fixed set of colors a message can be drawn in.
var Palette = [10]string{
	"#FF6B6B",
	"#4ECDC4",
	"#45B7D1",
	"#96CEB4",
	"#FFEAA7",
	"#DDA0DD",
	"#98D8C8",
	"#F7DC6F",
	"#BB8FCE",
	"#85C1E9",
}
