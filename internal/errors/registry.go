package errors

import "slices"

// Template defines a registered error type.
type Template struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

const docBase = "https://github.com/vango-dev/urlstore/blob/main/docs/errors.md#"

// Error codes.
const (
	CodeMissingParam   = "E100"
	CodeInvalidRouteID = "E101"
	CodeParamHasSlash  = "E102"
	CodeInvalidPath    = "E103"
	CodeInvalidURL     = "E104"

	CodeConfigParse    = "E200"
	CodeConfigInvalid  = "E201"
	CodeConfigEnv      = "E202"
	CodeConfigWrite    = "E203"
	CodeConfigNotFound = "E204"

	CodeConnectFailed  = "E300"
	CodeInvalidMessage = "E301"
	CodeUnknownMessage = "E302"
	CodeNavigateFailed = "E303"
	CodeNotConnected   = "E304"

	CodeInvalidArgument = "E350"
)

// registry maps error codes to their templates.
var registry = map[string]Template{
	// ============================================
	// Route Errors (E100-E199)
	// ============================================

	CodeMissingParam: {
		Category: CategoryRoute,
		Message:  "Missing route parameter",
		Detail:   "The route id has a required [param] segment with no value in the params map.",
	},
	CodeInvalidRouteID: {
		Category: CategoryRoute,
		Message:  "Invalid route id",
		Detail:   "Route ids are slash-separated segments; parameter brackets must be balanced.",
	},
	CodeParamHasSlash: {
		Category: CategoryRoute,
		Message:  "Route parameter contains a slash",
		Detail:   "Only rest parameters ([...name]) may span several path segments.",
	},
	CodeInvalidPath: {
		Category: CategoryRoute,
		Message:  "Invalid path",
		Detail:   "The path contains a backslash, a NUL byte, a malformed percent escape, or climbs above the root.",
	},
	CodeInvalidURL: {
		Category: CategoryRoute,
		Message:  "Invalid URL",
	},

	// ============================================
	// Config Errors (E200-E299)
	// ============================================

	CodeConfigParse: {
		Category: CategoryConfig,
		Message:  "Config file is not valid JSON",
	},
	CodeConfigInvalid: {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},
	CodeConfigEnv: {
		Category: CategoryConfig,
		Message:  "Invalid environment variable",
		Detail:   "A URLSTORE_* environment variable could not be parsed.",
	},
	CodeConfigWrite: {
		Category: CategoryConfig,
		Message:  "Cannot write config file",
	},
	CodeConfigNotFound: {
		Category: CategoryConfig,
		Message:  "Config file not found",
	},

	// ============================================
	// Protocol Errors (E300-E349)
	// ============================================

	CodeConnectFailed: {
		Category: CategoryProtocol,
		Message:  "WebSocket connection failed",
	},
	CodeInvalidMessage: {
		Category: CategoryProtocol,
		Message:  "Malformed message",
		Detail:   "Messages are JSON objects with a type field.",
	},
	CodeUnknownMessage: {
		Category: CategoryProtocol,
		Message:  "Unknown message type",
	},
	CodeNavigateFailed: {
		Category: CategoryProtocol,
		Message:  "Navigation rejected by host",
	},
	CodeNotConnected: {
		Category: CategoryProtocol,
		Message:  "Not connected to host",
	},

	// ============================================
	// CLI Errors (E350-E399)
	// ============================================

	CodeInvalidArgument: {
		Category: CategoryCLI,
		Message:  "Invalid argument",
	},
}

func init() {
	for code, t := range registry {
		if t.DocURL == "" {
			t.DocURL = docBase + code
			registry[code] = t
		}
	}
}

// Codes returns all registered error codes in order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

// Lookup returns the template for an error code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template Template) {
	registry[code] = template
}
