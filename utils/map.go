package utils

import (
	"fmt"
	"strings"

	"github.com/elliotchance/orderedmap/v2"
)

// OrderedMapToString renders data in insertion order, e.g. "[frame=12 failed=0]".
func OrderedMapToString(data *orderedmap.OrderedMap[string, any]) string {
	if data == nil || data.Len() == 0 {
		return "[]"
	}

	var sb strings.Builder
	sb.WriteByte('[')
	for i, key := range data.Keys() {
		if i > 0 {
			sb.WriteByte(' ')
		}
		v, _ := data.Get(key)
		fmt.Fprintf(&sb, "%s=%v", key, v)
	}
	sb.WriteByte(']')
	return sb.String()
}
