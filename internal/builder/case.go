package builder

import "unicode"

// SnakeCase turns a Go identifier into a file name stem:
// "OrderLine" → "order_line", "HTTPClient" → "http_client".
func SnakeCase(s string) string {
	runes := []rune(s)
	out := make([]rune, 0, len(runes)+4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					out = append(out, '_')
				}
			}
			r = unicode.ToLower(r)
		}
		out = append(out, r)
	}
	return string(out)
}
