package logging

import (
	"log/slog"
	"strings"
)

// kv is a flattened attribute with its group path folded into the key.
type kv struct {
	key   string
	value slog.Value
}

type infoField struct {
	label string
	value string
}

const infoAttrLimit = 8

// infoHighlightKeys render before everything else so the fields an operator
// scans for keep a stable position across records.
var infoHighlightKeys = []string{
	FieldAlert,
	FieldEventType,
	FieldDecisionType,
	"title",
	"prompt",
	"processing_status",
	FieldProgressStage,
	FieldProgressPercent,
	FieldProgressMessage,
	FieldProgressETA,
	"command",
	"error_message",
	FieldErrorCode,
	FieldErrorHint,
	FieldErrorDetailPath,
	"status",
	"attempt",
	"max_attempts",
	"backoff",
	"narration_words",
	"narration_duration",
	"target_duration",
	"audio_duration",
	"duration_delta_percent",
	"voice",
	"keywords",
	"footage_query",
	"clips_selected",
	"clip_count",
	"plan_segments",
	"plan_duration",
	"video_resolution",
	"video_duration",
	"output_bytes",
	"result_ref",
	"storage_backend",
	"decision_result",
	"decision_reason",
	// Stage summary fields
	"stage_duration",
	"llm_duration",
	"tts_duration",
	"search_duration",
	"download_bytes",
	"assembly_duration",
	"upload_duration",
	"cache_used",
	"cache_decision",
	"reason",
}

// selectInfoFields returns formatted info-level fields and a count of hidden entries.
// limit=0 means no limit. includeDebug controls whether debug-only keys are allowed.
func selectInfoFields(attrs []kv, limit int, includeDebug bool) ([]infoField, int) {
	if len(attrs) == 0 {
		return nil, 0
	}
	picker := fieldPicker{
		attrs:        attrs,
		includeDebug: includeDebug,
		limit:        max(limit, 0),
		used:         make([]bool, len(attrs)),
	}
	for _, key := range infoHighlightKeys {
		if picker.full() {
			break
		}
		if idx := picker.find(key); idx >= 0 {
			picker.take(idx)
		}
	}
	for idx := range attrs {
		picker.take(idx)
	}
	return picker.fields, picker.hidden
}

// fieldPicker walks flattened attributes in highlight-first order, deciding
// for each whether it renders, counts as hidden, or is dropped outright.
type fieldPicker struct {
	attrs        []kv
	includeDebug bool
	limit        int
	used         []bool
	fields       []infoField
	hidden       int
}

func (p *fieldPicker) full() bool {
	return p.limit > 0 && len(p.fields) >= p.limit
}

func (p *fieldPicker) find(key string) int {
	for idx, attr := range p.attrs {
		if !p.used[idx] && attr.key == key {
			return idx
		}
	}
	return -1
}

func (p *fieldPicker) take(idx int) {
	if p.used[idx] {
		return
	}
	p.used[idx] = true
	attr := p.attrs[idx]
	if skipInfoKey(attr.key) {
		return
	}
	if !p.includeDebug && isDebugOnlyKey(attr.key) {
		p.hidden++
		return
	}
	value := formatValueForKey(attr.key, attr.value, p.attrs)
	if !p.includeDebug && shouldHideInfoValue(attr.key, value) {
		p.hidden++
		return
	}
	if p.full() {
		p.hidden++
		return
	}
	p.fields = append(p.fields, infoField{label: displayLabel(attr.key), value: value})
}

// formatValueForKey applies humanized formatting for well-known key shapes.
func formatValueForKey(key string, v slog.Value, attrs []kv) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindInt64:
		if isByteSizeKey(key) {
			return formatBytes(v.Int64())
		}
	case slog.KindUint64:
		if isByteSizeKey(key) {
			return formatBytes(int64(v.Uint64()))
		}
	case slog.KindDuration:
		if isDurationKey(key) {
			return formatDurationHuman(v.Duration())
		}
	case slog.KindFloat64:
		if isPercentKey(key) {
			return formatPercent(v.Float64())
		}
	case slog.KindBool:
		if v.Bool() {
			return "yes"
		}
		return "no"
	}

	value := formatValue(v)
	if key == "error" || key == "error_message" {
		value = truncateErrorValue(value, attrValue(attrs, FieldErrorDetailPath))
	}
	return value
}

func isByteSizeKey(key string) bool {
	return key == "size" || strings.HasSuffix(key, "_bytes") || strings.HasSuffix(key, "_size")
}

// isDurationKey matches elapsed-time keys. Media-length keys carry seconds
// as floats and are excluded on purpose.
func isDurationKey(key string) bool {
	switch key {
	case "elapsed", "backoff", "stage_duration", "llm_duration", "tts_duration",
		"search_duration", "assembly_duration", "upload_duration":
		return true
	}
	return strings.HasSuffix(key, "_elapsed") || strings.HasSuffix(key, "_latency")
}

func isPercentKey(key string) bool {
	return key == FieldProgressPercent || strings.HasSuffix(key, "_percent")
}

// truncateErrorValue keeps console error text scannable. The full text still
// lands in the debug log, and the detail-path pointer survives truncation.
func truncateErrorValue(value, detailPath string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if len(value) > 200 {
		value = value[:200] + "…"
	}
	if strings.TrimSpace(detailPath) == "" {
		return value
	}
	if strings.Contains(value, "error_detail_path") || strings.Contains(value, "detail_path") {
		return value
	}
	return value + " (see error_detail_path)"
}

func skipInfoKey(key string) bool {
	switch key {
	case "", FieldJobID, FieldStage, FieldLane, FieldComponent:
		return true
	default:
		return false
	}
}

func isDebugOnlyKey(key string) bool {
	switch key {
	case "":
		return true
	case FieldCorrelationID, "fingerprint", "clip_url", "clip_source_id",
		"segments", "segment_count", "token_count", "score", "score_reasons",
		"per_page", "orientation", "words_requested", "size_mb", "duration_seconds":
		return true
	}
	if strings.HasSuffix(key, "_id") && key != FieldJobID {
		return true
	}
	if strings.HasPrefix(key, "ffprobe.") {
		return true
	}
	for _, fragment := range []string{"correlation", "fingerprint", "_url", "_path", "_dir", "_file"} {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}

func shouldHideInfoValue(key, value string) bool {
	switch key {
	case "error_message", "error", "command", "prompt", "reason":
		return false
	}
	return len(value) > 120
}

// fieldLabels maps well-known keys to their console labels. Anything absent
// falls back to a titleized form of the key.
var fieldLabels = map[string]string{
	FieldAlert:               "Alert",
	FieldEventType:           "Event",
	FieldDecisionType:        "Decision",
	FieldErrorCode:           "Error Code",
	FieldErrorHint:           "Hint",
	FieldErrorDetailPath:     "Error Detail",
	FieldJobID:               "Job",
	FieldStage:               "Stage",
	"title":                  "Title",
	"prompt":                 "Prompt",
	"processing_status":      "Status",
	"progress_stage":         "Progress Stage",
	"progress_message":       "Progress",
	"stage_duration":         "Duration",
	"llm_duration":           "LLM Time",
	"tts_duration":           "TTS Time",
	"search_duration":        "Search Time",
	"assembly_duration":      "Assembly Time",
	"upload_duration":        "Upload Time",
	"narration_words":        "Words",
	"narration_duration":     "Narration",
	"audio_duration":         "Narration",
	"target_duration":        "Target",
	"duration_delta_percent": "Duration Delta",
	"voice":                  "Voice",
	"keywords":               "Keywords",
	"footage_query":          "Query",
	"clips_selected":         "Clips",
	"clip_count":             "Clips",
	"plan_segments":          "Segments",
	"plan_duration":          "Plan Length",
	"video_resolution":       "Resolution",
	"video_duration":         "Video Length",
	"download_bytes":         "Downloaded",
	"output_bytes":           "Output Size",
	"result_ref":             "Result",
	"storage_backend":        "Storage",
	"cache_used":             "Cache Hit",
	"cache_decision":         "Cache",
	"attempt":                "Attempt",
	"max_attempts":           "Max Attempts",
	"decision_result":        "Decision",
	"decision_reason":        "Why",
	"reason":                 "Reason",
}

func displayLabel(key string) string {
	if label, ok := fieldLabels[key]; ok {
		return label
	}
	return titleizeKey(key)
}

func titleizeKey(key string) string {
	parts := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-'
	})
	if len(parts) == 0 {
		return capitalizeASCII(key)
	}
	for i, part := range parts {
		parts[i] = capitalizeASCII(part)
	}
	return strings.Join(parts, " ")
}

func capitalizeASCII(value string) string {
	if value == "" {
		return ""
	}
	lower := strings.ToLower(value)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// infoSummaryKey identifies the subject a record belongs to for repeat
// suppression. Jobless records fall back to the title, then the component.
func infoSummaryKey(component, jobID, _ string, attrs []kv) string {
	jobID = strings.TrimSpace(jobID)
	if jobID != "" {
		return jobID
	}
	if title := attrValue(attrs, "title"); title != "" {
		return "title:" + title
	}
	return component
}

func attrValue(attrs []kv, key string) string {
	for _, kv := range attrs {
		if kv.key == key {
			return attrString(kv.value)
		}
	}
	return ""
}
