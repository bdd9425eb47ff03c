package extract

import "regexp"

var cpvRe = regexp.MustCompile(`\b\d{8}\b`)

// maxCPVCodes caps how many distinct codes one document may contribute.
const maxCPVCodes = 10

// MineCPVCodes scans the seed text (a labeled CPV field, when found) and
// the full document for 8-digit classification codes, returning the first
// distinct matches in order of first appearance.
func MineCPVCodes(seed, document string) []string {
	seen := make(map[string]struct{})
	var codes []string
	for _, src := range []string{seed, document} {
		for _, code := range cpvRe.FindAllString(src, -1) {
			if _, ok := seen[code]; ok {
				continue
			}
			seen[code] = struct{}{}
			codes = append(codes, code)
			if len(codes) == maxCPVCodes {
				return codes
			}
		}
	}
	return codes
}
