package cache

import (
	"fmt"
	"strings"
)

// MakeKey joins prefix and parts with ':' so call sites build identical keys.
func MakeKey(prefix string, parts ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range parts {
		b.WriteByte(':')
		fmt.Fprint(&b, p)
	}
	return b.String()
}
