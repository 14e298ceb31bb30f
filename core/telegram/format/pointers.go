package format

import "time"

// DerefString safely dereferences a *string and returns a default value if nil.
func DerefString(s *string, defaultVal string) string {
	if s != nil {
		return *s
	}
	return defaultVal
}

// DerefTime formats a *time.Time with layout, or returns defaultVal if nil.
func DerefTime(t *time.Time, layout, defaultVal string) string {
	if t == nil {
		return defaultVal
	}
	return t.Format(layout)
}
