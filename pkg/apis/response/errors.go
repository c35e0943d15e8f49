package response

var errors = map[ErrCode]string{
	ErrCodeMalformedJSON:              "The JSON you provided was not well-formed or did not validate against our published format.",
	ErrCodeRequestBody:                "Request body error",
	ErrCodeResourceExists:             "Resource %s already exists.",
	ErrCodeResourceNotFound:           "Resource %s not found.",
	ErrCodeTooManyJsonPatchOperations: "The allowed maximum operations in a JSON patch is %d.",
	ErrCodeGroupNotFound:              "Poll group %s not found.",
	ErrCodeUnknownTemplate:            "Unknown register template %s.",
	ErrCodeInvalidRegister:            "Invalid register %s: %s.",
}

// !!! IMPORTANT PLEASE READ FIRST !!!
// You SHOULD add new code at the end of enum firstly.

var ErrMalformedJSON = &responseError{
	Code:    ErrCodeMalformedJSON,
	Message: errors[ErrCodeMalformedJSON],
}

var ErrRequestBody = &responseError{
	Code:    ErrCodeRequestBody,
	Message: errors[ErrCodeRequestBody],
}

func ErrTooManyJsonPatchOperations(max int) *responseError {
	return generateError(ErrCodeTooManyJsonPatchOperations, max)
}

func ErrGroupNotFound(id string) *responseError {
	return generateError(ErrCodeGroupNotFound, id)
}

func ErrUnknownTemplate(name string) *responseError {
	return generateError(ErrCodeUnknownTemplate, name)
}

func ErrInvalidRegister(name, reason string) *responseError {
	return generateError(ErrCodeInvalidRegister, name, reason)
}
