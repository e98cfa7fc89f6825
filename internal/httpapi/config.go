package httpapi

import "time"

const defaultMaxBodyBytes = 8 << 20

// maxBodyBytes controls the maximum allowed request body size for JSON
// endpoints. Image requests carry base64 payloads, hence the 8 MiB default.
var maxBodyBytes int64 = defaultMaxBodyBytes

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
		return
	}
	maxBodyBytes = n
}

// requestTimeout bounds generation endpoints. Zero means no additional
// timeout beyond server/connection timeouts.
var requestTimeout time.Duration

// SetRequestTimeout sets the generation timeout (0 disables).
func SetRequestTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	requestTimeout = d
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled          bool
	corsAllowedOrigins   []string
	corsAllowedMethods   []string
	corsAllowedHeaders   []string
	corsAllowCredentials bool
	corsMaxAge           int
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

// SetCORSCredentials sets Access-Control-Allow-Credentials and the preflight cache age in seconds.
func SetCORSCredentials(allow bool, maxAge int) {
	corsAllowCredentials = allow
	corsMaxAge = maxAge
}
