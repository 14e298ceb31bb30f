package logger

import "strings"

// Level names as they appear in the level field.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// statusAliases folds spellings of the status field onto one value.
var statusAliases = map[string]string{
	"ok":           "ok",
	"success":      "ok",
	"fail":         "fail",
	"failed":       "fail",
	"error":        "fail",
	"skip":         "skip",
	"retry":        "retry",
	"rate_limited": "rate_limited",
	"cancelled":    "cancelled",
	"canceled":     "cancelled",
	"denied":       "denied",
	"duplicate":    "duplicate",
	"reprompt":     "reprompt",
}

// outcomes is the closed vocabulary of handler outcomes. Values outside it
// are dropped so dashboards grouping by outcome stay bounded.
var outcomes = map[string]string{
	// generic
	"ok":           "ok",
	"fail":         "fail",
	"failed":       "fail",
	"ignored":      "ignored",
	"hint":         "hint",
	"rate_limited": "rate_limited",
	// catalog and access
	"empty":     "empty",
	"denied":    "denied",
	"not_found": "not_found",
	"active":    "active",
	"inactive":  "inactive",
	// payments
	"stale":     "stale",
	"accepted":  "accepted",
	"rejected":  "rejected",
	"settled":   "settled",
	"duplicate": "duplicate",
	// ingest dialog
	"prompted":  "prompted",
	"reprompt":  "reprompt",
	"captured":  "captured",
	"saved":     "saved",
	"cancelled": "cancelled",
	"canceled":  "cancelled",
}

func normalizeLevel(level string) string {
	switch l := strings.ToUpper(strings.TrimSpace(level)); l {
	case "":
		return LevelInfo
	case "WARNING":
		return LevelWarn
	default:
		return l
	}
}

func normalizeStatus(status string) (string, bool) {
	v, ok := statusAliases[strings.ToLower(strings.TrimSpace(status))]
	return v, ok
}

func normalizeOutcome(outcome string) (string, bool) {
	v, ok := outcomes[strings.ToLower(strings.TrimSpace(outcome))]
	return v, ok
}

// defaultKeyOrder puts correlation fields first, then the docshelf domain
// fields, so kv lines line up when grepping a single update.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "trace_id", "span_id", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type", "kind",
	"handler", "op", "state", "outcome", "duration_ms",
	"cb_key", "payload", "lang", "username",
	"document_id", "title", "price", "months", "amount", "currency",
	"charge_id", "expires_at", "duplicate",
	"mode", "listen", "public_url", "driver", "db", "host", "port",
	"err", "err_code", "cause", "retryable", "attempts", "backoff_ms",
	"rate_limited", "pending_count",
}
