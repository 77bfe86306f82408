package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldErrorKind   = "error_kind"
	FieldOperation   = "operation"
	FieldQueryKey    = "query_key"
	FieldSeq         = "seq"
	FieldSubscribers = "subscribers"
	FieldAction      = "action"
	FieldActionID    = "action_id"
	FieldAccount     = "account"
	FieldCPF         = "cpf"
	FieldAmount      = "amount"
	FieldUser        = "user"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentGateway    = "gateway"
	ComponentGraphQL    = "graphql"
	ComponentSession    = "session"
	ComponentGuard      = "guard"
	ComponentMutations  = "mutations"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentReconciler = "reconciler"
	ComponentSheets     = "sheets"
	ComponentRateLimit  = "rate_limit"
	ComponentBackend    = "backend"
	ComponentCache      = "cache"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithError adds error field, and the error kind when one is known
func (f LogFields) WithError(err error, kind string) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		if kind != "" {
			f[FieldErrorKind] = kind
		}
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithAction adds the mutation action name and its invocation id
func (f LogFields) WithAction(action, id string) LogFields {
	f[FieldAction] = action
	f[FieldActionID] = id
	return f
}

// WithHTTP adds request and response fields
func (f LogFields) WithHTTP(method, path string, statusCode int, durationMs int64) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
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
