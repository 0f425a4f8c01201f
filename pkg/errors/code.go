package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Configuration errors
// 12000-12999: Program resolution, compilation and execution errors
// 13000-13999: Files & Batch errors
// 14000-14999: Data pack & Publish errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Canceled            ErrorCode = 10004

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Configuration Errors (11000-11999) ==========

	ConfigNotFound         ErrorCode = 11000
	ConfigParseFailed      ErrorCode = 11001
	ConfigInvalid          ErrorCode = 11002
	ConfigAlreadyGenerated ErrorCode = 11003
	ConfigWriteFailed      ErrorCode = 11004

	// ========== Program Errors (12000-12999) ==========

	// Resolution (12000-12099)
	UnknownExtension ErrorCode = 12000
	UnknownMode      ErrorCode = 12001

	// Compilation (12100-12199)
	InvalidArtifactExtension ErrorCode = 12100
	CompileIOFailed          ErrorCode = 12101
	CompileUnsuccessful      ErrorCode = 12102

	// Execution (12200-12299)
	ProgramSpawnFailed ErrorCode = 12200
	ProgramExitFailure ErrorCode = 12201

	// ========== Files & Batch Errors (13000-13999) ==========

	// Files (13000-13099)
	FileDiscoveryFailed ErrorCode = 13000
	FileReadFailed      ErrorCode = 13001
	FileWriteFailed     ErrorCode = 13002
	PathOutsideRoot     ErrorCode = 13003
	DirectoryRequired   ErrorCode = 13004

	// Batch (13100-13199)
	BatchFailed ErrorCode = 13100

	// ========== Data pack & Publish Errors (14000-14999) ==========

	PackFailed           ErrorCode = 14000
	PackInvalid          ErrorCode = 14001
	PublishFailed        ErrorCode = 14100
	StorageNotConfigured ErrorCode = 14101
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Canceled:            "Operation canceled",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Configuration
	ConfigNotFound:         "Config file not found",
	ConfigParseFailed:      "Failed to parse config",
	ConfigInvalid:          "Invalid config",
	ConfigAlreadyGenerated: "Config is already generated",
	ConfigWriteFailed:      "Failed to write config",

	// Program - Resolution
	UnknownExtension: "Unknown program file extension",
	UnknownMode:      "Unknown program mode",

	// Program - Compilation
	InvalidArtifactExtension: "Artifact extension must be empty or start with '.'",
	CompileIOFailed:          "Failed to start compiler",
	CompileUnsuccessful:      "Compilation failed",

	// Program - Execution
	ProgramSpawnFailed: "Failed to start program",
	ProgramExitFailure: "Program exited unsuccessfully",

	// Files
	FileDiscoveryFailed: "Failed to list files",
	FileReadFailed:      "Failed to read file",
	FileWriteFailed:     "Failed to write file",
	PathOutsideRoot:     "Path is not under the expected root",
	DirectoryRequired:   "Path must be a directory",

	// Batch
	BatchFailed: "Batch failed",

	// Data pack & Publish
	PackFailed:           "Failed to build data pack",
	PackInvalid:          "Invalid data pack",
	PublishFailed:        "Failed to publish data pack",
	StorageNotConfigured: "Object storage is not configured",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// ExitStatus returns the recommended process exit status for the error code
func (c ErrorCode) ExitStatus() int {
	switch {
	case c == Success:
		return 0
	case c == InvalidParams, c >= 10300 && c < 10400: // Usage & validation errors
		return 2
	case c >= 11000 && c < 12000: // Configuration errors
		return 2
	case c == Canceled:
		return 130
	default:
		return 1
	}
}
