package extractor

// Code is the §7 error taxonomy. Every failed or downgraded attempt carries
// exactly one.
type Code string

const (
	CodeFetchTransient            Code = "FETCH_TRANSIENT"
	CodeFetchPermanent            Code = "FETCH_PERMANENT"
	CodeParseNoPrice              Code = "PARSE_NO_PRICE"
	CodeValidationOutOfRange      Code = "VALIDATION_OUT_OF_RANGE"
	CodeValidationChangeExceeded  Code = "VALIDATION_CHANGE_EXCEEDED"
	CodeDynamicNavigationFailed   Code = "DYNAMIC_NAVIGATION_FAILED"
	CodeDynamicVariantNotFound    Code = "DYNAMIC_VARIANT_NOT_FOUND"
	CodeLLMParseFailed            Code = "LLM_PARSE_FAILED"
	CodeLLMOutOfBudget            Code = "LLM_OUT_OF_BUDGET"
	CodeCancelled                 Code = "CANCELLED"
)

// Error wraps a tier failure with its taxonomy code. Tiers never panic;
// they return an *Error and the orchestrator folds it into the state
// machine's next step (§7 propagation policy).
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
