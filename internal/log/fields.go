package log

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldError        = "error"
	FieldErrorType    = "error_type"
	FieldOperation    = "operation"
	FieldFiscalYearID = "fiscal_year_id"
	FieldExpenseID    = "expense_id"
	FieldDescription  = "description"
	FieldAmount       = "amount"
	FieldCategory     = "category"
	FieldStoreKey     = "store_key"
	FieldBackend      = "backend"
	FieldRevision     = "revision"
	FieldCount        = "count"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentFiscalYear = "fiscal_year"
	ComponentExpense    = "expense"
	ComponentBudget     = "budget"
	ComponentSummary    = "summary"
	ComponentCategory   = "category"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentSheets     = "sheets"
	ComponentReceipt    = "receipt"
	ComponentCLI        = "cli"
	ComponentCache      = "cache"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpActivate  = "activate"
	OpLoad      = "load"
	OpSave      = "save"
	OpRecompute = "recompute"
	OpPublish   = "publish"
	OpExport    = "export"
	OpUpload    = "upload"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeCorruptData   = "corrupt_data_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeNetwork       = "network_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithErrorType(errorType string) LogFields {
	f[FieldErrorType] = errorType
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithStoreKey(key string) LogFields {
	f[FieldStoreKey] = key
	return f
}

func (f LogFields) WithFiscalYear(id string) LogFields {
	f[FieldFiscalYearID] = id
	return f
}

// WithExpense adds expense-related fields
func (f LogFields) WithExpense(id, desc, amount, category string) LogFields {
	f[FieldExpenseID] = id
	f[FieldDescription] = desc
	f[FieldAmount] = amount
	f[FieldCategory] = category
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
