package constants

import "time"

const (
	DraftDebounce  = 300 * time.Millisecond
	SearchDebounce = 300 * time.Millisecond
	SearchMinChars = 2
)

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
	UploadTimeout      = 2 * time.Minute
)

const (
	DBMaxOpenConns = 4
	DBMaxIdleTime  = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
	DraftRetention  = 30 * 24 * time.Hour
)

const (
	DefaultPageSize  = 20
	MaxPageSize      = 200
	ExportPageSize   = 10000
	MKUserSearchSize = 20
)

// local storage key prefixes, suffixed with the import batch id
const (
	MatchedUsersKeyPrefix = "jkImportMatchedUsers_"
	WinLossKeyPrefix      = "jkImportWinLossChanges_"
	ChangeCountKeyPrefix  = "jkImportLastChanges_"
)
