package observability

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	otellog "go.opentelemetry.io/otel/log"
	otelglobal "go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap/zapcore"

	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
)

const (
	logMirrorScope   = "fantasy-roster/logging"
	maxLogValueDepth = 3
)

// rosterKeys are copied onto the record under a stable "roster." prefix so
// every league, team and claim log can be filtered the same way in Uptrace.
var rosterKeys = map[string]string{
	"league_id":  "roster.league_id",
	"team_id":    "roster.team_id",
	"player_id":  "roster.player_id",
	"claim_id":   "roster.claim_id",
	"matchup_id": "roster.matchup_id",
}

// quietPaths are request logs that only show up when a probe fails and
// would otherwise flood the log stream.
var quietPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

var severities = []struct {
	max zapcore.Level
	sev otellog.Severity
}{
	{zapcore.DebugLevel, otellog.SeverityDebug},
	{zapcore.InfoLevel, otellog.SeverityInfo},
	{zapcore.WarnLevel, otellog.SeverityWarn},
	{zapcore.ErrorLevel, otellog.SeverityError},
}

func newUptraceLogMirror(serviceVersion string) logging.MirrorFunc {
	emitter := otelglobal.Logger(logMirrorScope, otellog.WithInstrumentationVersion(serviceVersion))

	return func(ctx context.Context, level logging.Level, msg string, args ...any) {
		if shouldSkipUptraceLog(msg, args) {
			return
		}
		if ctx == nil {
			ctx = context.Background()
		}

		severity := toOTelSeverity(level)
		if !emitter.Enabled(ctx, otellog.EnabledParameters{Severity: severity, EventName: msg}) {
			return
		}

		now := time.Now().UTC()
		var record otellog.Record
		record.SetTimestamp(now)
		record.SetObservedTimestamp(now)
		record.SetSeverity(severity)
		record.SetSeverityText(strings.ToUpper(level.String()))
		record.SetEventName(msg)
		record.SetBody(otellog.StringValue(msg))
		if attrs := buildOTelLogAttributes(args); len(attrs) > 0 {
			record.AddAttributes(attrs...)
		}
		emitter.Emit(ctx, record)
	}
}

func shouldSkipUptraceLog(msg string, args []any) bool {
	if msg != "http request" {
		return false
	}
	path, _ := lookupArg(args, "path").(string)
	return quietPaths[path]
}

func lookupArg(args []any, key string) any {
	for i := 0; i+1 < len(args); i += 2 {
		if k, ok := args[i].(string); ok && k == key {
			return args[i+1]
		}
	}
	return nil
}

func buildOTelLogAttributes(args []any) []otellog.KeyValue {
	if len(args) == 0 {
		return nil
	}

	attrs := make([]otellog.KeyValue, 0, len(args)/2+2)
	for i := 0; i < len(args); i += 2 {
		key, _ := args[i].(string)
		if strings.TrimSpace(key) == "" {
			key = fmt.Sprintf("arg_%d", i/2)
		}
		if i+1 >= len(args) {
			attrs = append(attrs, otellog.Empty(key))
			continue
		}

		value := toOTelLogValue(args[i+1], 0)
		attrs = append(attrs, otellog.KeyValue{Key: key, Value: value})
		if alias, ok := rosterKeys[key]; ok {
			attrs = append(attrs, otellog.KeyValue{Key: alias, Value: value})
		}
	}
	return attrs
}

func toOTelSeverity(level zapcore.Level) otellog.Severity {
	for _, item := range severities {
		if level <= item.max {
			return item.sev
		}
	}
	return otellog.SeverityFatal
}

func toOTelLogValue(value any, depth int) otellog.Value {
	if value == nil {
		return otellog.Value{}
	}
	if depth >= maxLogValueDepth {
		return otellog.StringValue(fmt.Sprint(value))
	}

	switch v := value.(type) {
	case time.Time:
		return otellog.StringValue(v.UTC().Format(time.RFC3339Nano))
	case time.Duration:
		return otellog.StringValue(v.String())
	case error:
		return otellog.StringValue(v.Error())
	case []byte:
		return otellog.BytesValue(append([]byte(nil), v...))
	case fmt.Stringer:
		return otellog.StringValue(v.String())
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String:
		return otellog.StringValue(rv.String())
	case reflect.Bool:
		return otellog.BoolValue(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return otellog.Int64Value(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if u := rv.Uint(); u <= 1<<63-1 {
			return otellog.Int64Value(int64(u))
		}
		return otellog.StringValue(fmt.Sprint(value))
	case reflect.Float32, reflect.Float64:
		return otellog.Float64Value(rv.Float())
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return otellog.Value{}
		}
		return toOTelLogValue(rv.Elem().Interface(), depth+1)
	case reflect.Slice, reflect.Array:
		items := make([]otellog.Value, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items = append(items, toOTelLogValue(rv.Index(i).Interface(), depth+1))
		}
		return otellog.SliceValue(items...)
	case reflect.Map:
		return mapLogValue(rv, depth)
	case reflect.Struct:
		// Events and claims are logged whole; keep them as JSON.
		if raw, err := sonic.MarshalString(value); err == nil {
			return otellog.StringValue(raw)
		}
	}
	return otellog.StringValue(fmt.Sprint(value))
}

func mapLogValue(rv reflect.Value, depth int) otellog.Value {
	if rv.Type().Key().Kind() != reflect.String {
		return otellog.StringValue(fmt.Sprint(rv.Interface()))
	}
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	kvs := make([]otellog.KeyValue, 0, len(keys))
	for _, key := range keys {
		kvs = append(kvs, otellog.KeyValue{
			Key:   key.String(),
			Value: toOTelLogValue(rv.MapIndex(key).Interface(), depth+1),
		})
	}
	return otellog.MapValue(kvs...)
}
