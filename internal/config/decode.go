package config

// Small helpers for walking documents decoded by gopkg.in/yaml.v3 into
// interface{} (maps become map[string]interface{}, sequences become
// []interface{}). Mirrors the yaml_rust::Yaml indexing original_source
// leans on throughout configs/*.rs, adapted to Go's dynamic-decode shape.

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func asSlice(v interface{}) ([]interface{}, bool) {
	s, ok := v.([]interface{})
	return s, ok
}

func field(m map[string]interface{}, key string) interface{} {
	if m == nil {
		return nil
	}
	return m[key]
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func stringOr(m map[string]interface{}, key, def string) string {
	if s, ok := asString(field(m, key)); ok {
		return s
	}
	return def
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func int64Or(m map[string]interface{}, key string, def int64) int64 {
	if n, ok := asInt64(field(m, key)); ok {
		return n
	}
	return def
}

func boolOr(m map[string]interface{}, key string, def bool) bool {
	if b, ok := field(m, key).(bool); ok {
		return b
	}
	return def
}
