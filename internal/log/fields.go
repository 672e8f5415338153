package log

import "github.com/shopspring/decimal"

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldBackend    = "backend"
	FieldBillID     = "bill_id"
	FieldBillName   = "bill_name"
	FieldAmount     = "amount"
	FieldCategory   = "category"
	FieldStatus     = "status"
	FieldDueDate    = "due_date"
	FieldCount      = "count"
	FieldNotice     = "notice"
	FieldSheetsRef  = "sheets_ref"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentBackend  = "backend"
	ComponentSheets   = "sheets"
	ComponentAirtable = "airtable"
	ComponentStorage  = "storage"
	ComponentService  = "service"
	ComponentParser   = "parser"
	ComponentAMQP     = "amqp"
	ComponentNotify   = "notify"
	ComponentTrace    = "trace"
	ComponentCache    = "cache"
	ComponentWorker   = "worker"
)

// Operations defines standard operation names
const (
	OpConnect = "connect"
	OpList    = "list"
	OpAdd     = "add"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpExport  = "export"
	OpParse   = "parse"
	OpLoad    = "load"
	OpSave    = "save"
	OpRemind  = "remind"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithBackend adds the backend key field
func (f LogFields) WithBackend(backend string) LogFields {
	f[FieldBackend] = backend
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithBill adds bill-related fields
func (f LogFields) WithBill(id, name string, amount decimal.Decimal, category string) LogFields {
	if id != "" {
		f[FieldBillID] = id
	}
	f[FieldBillName] = name
	f[FieldAmount] = amount.String()
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
