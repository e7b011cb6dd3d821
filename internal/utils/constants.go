package utils

import "time"

// Application Constants
const (
	AppName    = "CERA"
	AppVersion = "1.0.0"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
	MinPageSize     = 1

	// Authentication
	JWTAccessTokenTTL  = 24 * time.Hour
	JWTRefreshTokenTTL = 7 * 24 * time.Hour

	// Geospatial search
	DefaultSearchRadiusKM = 10.0
	MaxSearchRadiusKM     = 100.0
	DefaultNearbyLimit    = 50
	MaxNearbyLimit        = 200

	EarthRadiusKM = 6371.0

	// Incident media
	MaxIncidentPhotos  = 5
	MaxImageSize       = 6 * 1024 * 1024 // 6MB
	ThumbnailMaxWidth  = 512
	ThumbnailMaxHeight = 512

	// Per-incident mutation lock
	IncidentLockTTL = 10 * time.Second

	// Work logs
	MaxWorkLogHours = 24.0

	// Notification
	NotificationTimeout = 30 * time.Second
)

// Push platforms
const (
	PlatformFCM  = "fcm"
	PlatformAPNS = "apns"
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error Messages
const (
	ErrInvalidToken        = "invalid token"
	ErrInvalidInput        = "invalid input"
	ErrInternalServer      = "internal server error"
	ErrUnauthorized        = "unauthorized"
	ErrForbidden           = "forbidden"
	ErrValidationFailed    = "validation failed"
	ErrIncidentNotFound    = "incident not found"
	ErrUserNotFound        = "user not found"
	ErrAssignmentNotFound  = "assignment not found"
	ErrCoordinatesRequired = "lng and lat are required"
)

// Cache Keys
const (
	CacheKeyIncident     = "incident:%s"      // incident:<id>
	CacheKeyIncidentLock = "incident_lock:%s" // incident_lock:<id>
	CacheKeyUser         = "user:%s"          // user:<id>
	CacheKeyCoordinators = "users:coordinators"
)

// Cache TTLs
const (
	IncidentCacheTTL    = 15 * time.Minute
	UserCacheTTL        = 30 * time.Minute
	CoordinatorCacheTTL = 5 * time.Minute
)
