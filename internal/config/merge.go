package config

// Merge deep-merges each src into dst in order and returns dst. Nested
// map[string]any values are merged recursively; every other value type
// from a later map replaces the earlier one. dst may be nil.
func Merge(dst map[string]any, srcs ...map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	for _, src := range srcs {
		for key, value := range src {
			srcMap, srcIsMap := value.(map[string]any)
			dstMap, dstIsMap := dst[key].(map[string]any)
			if srcIsMap && dstIsMap {
				dst[key] = Merge(dstMap, srcMap)
				continue
			}
			if srcIsMap {
				// Copy so later merges cannot mutate the source.
				dst[key] = Merge(make(map[string]any), srcMap)
				continue
			}
			dst[key] = value
		}
	}
	return dst
}
