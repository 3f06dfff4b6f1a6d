package errors

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal       ErrorCode = "COMMON_001"
	ErrCodeNotFound       ErrorCode = "COMMON_002"
	ErrCodeInvalidParam   ErrorCode = "COMMON_003"
	ErrCodeNotImplemented ErrorCode = "COMMON_004"
)

// Configuration error codes.  These abort before any training starts: a
// preprocessing list, dataset, or model that references something the
// registries do not know about is a caller bug, not a runtime condition.
const (
	ErrCodeUnregisteredTransform ErrorCode = "CFG_001"
	ErrCodeMalformedSettings     ErrorCode = "CFG_002"
	ErrCodeInvalidFractions      ErrorCode = "CFG_003"
	ErrCodeInvalidConfig         ErrorCode = "CFG_004"
)

// Unsupported-method error codes.  Raised when a name-keyed factory or a
// method-dispatching transform is asked for something it has no entry for.
const (
	ErrCodeUnknownFingerprintMethod ErrorCode = "MTH_001"
	ErrCodeUnknownSplitMethod       ErrorCode = "MTH_002"
	ErrCodeUnknownModel             ErrorCode = "MTH_003"
	ErrCodeUnknownDataset           ErrorCode = "MTH_004"
	ErrCodeUnknownOptimizer         ErrorCode = "MTH_005"
	ErrCodeUnknownMetric            ErrorCode = "MTH_006"
)

// Data-format error codes.
const (
	ErrCodeMissingAttribute ErrorCode = "DAT_001"
	ErrCodeInvalidSMILES    ErrorCode = "DAT_002"
	ErrCodeInvalidSequence  ErrorCode = "DAT_003"
	ErrCodeInvalidLabel     ErrorCode = "DAT_004"
	ErrCodeMalformedRow     ErrorCode = "DAT_005"
)

// Resource error codes.
const (
	ErrCodeFileNotFound   ErrorCode = "RES_001"
	ErrCodeUnreadablePDB  ErrorCode = "RES_002"
	ErrCodeCacheFailure   ErrorCode = "RES_003"
	ErrCodeFileUnreadable ErrorCode = "RES_004"
)

// CodeOK is the sentinel returned by GetCode for a nil error.
const CodeOK = ErrorCode("OK")

// CodeUnknown is returned by GetCode when no AppError is in the chain.
const CodeUnknown = ErrorCode("UNKNOWN")

// group reports the category prefix of a code ("CFG", "MTH", "DAT", "RES").
func (c ErrorCode) group() string {
	s := string(c)
	for i := 0; i < len(s); i++ {
		if s[i] == '_' {
			return s[:i]
		}
	}
	return s
}
