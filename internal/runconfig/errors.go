package runconfig

import "errors"

// ErrInvalidConfig wraps every option-validation failure from Validate.
var ErrInvalidConfig = errors.New("runconfig: invalid configuration")
