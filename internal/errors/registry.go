package errors

// Registered error codes.
const (
	CodeMissingCapability = "T001"
	CodeDuplicateProperty = "T002"
	CodeInvalidHost       = "T003"
	CodeAttributeConvert  = "T004"
	CodeLoaderRequired    = "T010"
	CodeConfigInvalid     = "T020"
	CodeRequestFailed     = "T030"
	CodeBadArguments      = "T040"
)

// Template defines a registered error class.
type Template struct {
	Category Category
	Message  string
	Detail   string
}

var registry = map[string]Template{
	// Binding errors (T001-T009)

	CodeMissingCapability: {
		Category: CategoryBinding,
		Message:  "Host is missing a required capability",
		Detail:   "Bindings need a host that can register properties and controllers. Properties with an attribute also need attribute access.",
	},
	CodeDuplicateProperty: {
		Category: CategoryBinding,
		Message:  "Duplicate property",
		Detail:   "A host instance may declare each property name once.",
	},
	CodeInvalidHost: {
		Category: CategoryBinding,
		Message:  "Invalid host value",
		Detail:   "Bindings are installed on a non-nil pointer to a struct.",
	},
	CodeAttributeConvert: {
		Category: CategoryBinding,
		Message:  "Attribute conversion failed",
		Detail:   "The attribute value could not be converted to the declared property type.",
	},

	// Resource errors (T010-T019)

	CodeLoaderRequired: {
		Category: CategoryResource,
		Message:  "Resource loader is required",
		Detail:   "A resource cannot be created without a loader function.",
	},

	// Config errors (T020-T029)

	CodeConfigInvalid: {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "The environment configuration failed validation.",
	},

	// API errors (T030-T039)

	CodeRequestFailed: {
		Category: CategoryAPI,
		Message:  "API request failed",
		Detail:   "The request could not be completed.",
	},

	// CLI errors (T040-T049)

	CodeBadArguments: {
		Category: CategoryCLI,
		Message:  "Invalid arguments",
		Detail:   "The command was called with invalid arguments.",
	},
}

// AllCodes returns all registered error codes.
func AllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
