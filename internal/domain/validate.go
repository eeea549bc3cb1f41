package domain

import "github.com/go-playground/validator/v10"

// validate is the package-level validator shared by configuration
// constructors. validator.Validate is safe for concurrent use.
var validate = validator.New()
