package internaldefs

import (
	"github.com/MrEthical07/authcenter"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   authcenter.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine latency histogram to its exported name.
type HistogramDef struct {
	ID   authcenter.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for dropped audit events.
const AuditDroppedName = "authcenter_audit_dropped_total"

// AuditDroppedHelp is the help text for AuditDroppedName.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: authcenter.MetricLoginSuccess, Name: "authcenter_login_success_total", Help: "Logins that returned a token."},
	{ID: authcenter.MetricLoginFailure, Name: "authcenter_login_failure_total", Help: "Failed logins, registry failures included."},
	{ID: authcenter.MetricLoginRegistryError, Name: "authcenter_login_registry_error_total", Help: "Logins stopped by a registry failure."},
	{ID: authcenter.MetricTokenValid, Name: "authcenter_token_valid_total", Help: "Token checks that passed."},
	{ID: authcenter.MetricTokenInvalid, Name: "authcenter_token_invalid_total", Help: "Token checks rejected for a missing or mismatched token."},
	{ID: authcenter.MetricTokenExpired, Name: "authcenter_token_expired_total", Help: "Token checks rejected for an expired token."},
	{ID: authcenter.MetricTokenMalformed, Name: "authcenter_token_malformed_total", Help: "Tokens rejected before any registry call."},
	{ID: authcenter.MetricTokenRegistryError, Name: "authcenter_token_registry_error_total", Help: "Token checks stopped by a registry failure."},
	{ID: authcenter.MetricTokenRefreshed, Name: "authcenter_token_refreshed_total", Help: "Token timestamps slid forward."},
	{ID: authcenter.MetricTokenRefreshFailed, Name: "authcenter_token_refresh_failed_total", Help: "Token refresh writes that failed."},
	{ID: authcenter.MetricSchemaRejected, Name: "authcenter_schema_rejected_total", Help: "Messages that failed input validation."},
	{ID: authcenter.MetricUnknownCommand, Name: "authcenter_unknown_command_total", Help: "Messages naming an unknown command."},
	{ID: authcenter.MetricHandlerPanic, Name: "authcenter_handler_panic_total", Help: "Requests answered by panic recovery."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: authcenter.MetricLoginLatency, Name: "authcenter_login_latency_seconds", Help: "Login latency histogram."},
	{ID: authcenter.MetricCheckTokenLatency, Name: "authcenter_check_token_latency_seconds", Help: "Token check latency histogram."},
}

// HistogramBounds are the upper bounds of the engine buckets, in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names each bound in OTel instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
