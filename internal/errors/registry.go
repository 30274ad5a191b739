package errors

// Template defines a registered error type.
type Template struct {
	Category   Category
	Message    string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]Template{
	// ============================================
	// Config Errors (E100-E119)
	// ============================================

	"E100": {
		Category:   CategoryConfig,
		Message:    "Config file not found",
		Suggestion: "Create inputwire.json or pass --config with the path to one",
	},
	"E101": {
		Category:   CategoryConfig,
		Message:    "Config file could not be parsed",
		Suggestion: "Check that the file is valid JSON",
	},
	"E102": {
		Category:   CategoryConfig,
		Message:    "Invalid window size",
		Suggestion: "window.size must be between 1 and 64 and identical on client and server",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid server setting",
	},
	"E104": {
		Category:   CategoryConfig,
		Message:    "Invalid capture setting",
		Suggestion: "capture.bucket and capture.region are required when capture is enabled",
	},
	"E105": {
		Category:   CategoryConfig,
		Message:    "Invalid log setting",
		Suggestion: "log.level is one of debug, info, warn, error; log.format is text or json",
	},
	"E106": {
		Category: CategoryConfig,
		Message:  "Config file could not be written",
	},

	// ============================================
	// Wire Errors (E120-E139)
	// ============================================

	"E120": {
		Category:   CategoryWire,
		Message:    "Invalid hex input",
		Suggestion: "Pass the packet as a hex string, with or without spaces",
	},
	"E121": {
		Category: CategoryWire,
		Message:  "Input packet could not be decoded",
	},
	"E122": {
		Category: CategoryWire,
		Message:  "Capture segment could not be decoded",
	},
	"E123": {
		Category:   CategoryWire,
		Message:    "Command record could not be decoded",
		Suggestion: "A record is exactly one encoded command; drop --record to decode a packet",
	},

	// ============================================
	// Transport Errors (E140-E159)
	// ============================================

	"E140": {
		Category:   CategoryTransport,
		Message:    "Could not connect to server",
		Suggestion: "Check the --url flag and that 'inputwire serve' is running",
	},
	"E141": {
		Category: CategoryTransport,
		Message:  "Server stopped unexpectedly",
	},
	"E142": {
		Category:   CategoryTransport,
		Message:    "Connection to server lost",
		Suggestion: "Check the server log; client and server must use the same window size",
	},

	// ============================================
	// Capture Errors (E160-E179)
	// ============================================

	"E160": {
		Category:   CategoryCapture,
		Message:    "Capture upload failed",
		Suggestion: "Check the bucket name, region and AWS credentials",
	},
	"E161": {
		Category:   CategoryCapture,
		Message:    "Could not load AWS configuration",
		Suggestion: "Check AWS_PROFILE and the shared config files in ~/.aws",
	},
}

// Lookup returns the template for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
