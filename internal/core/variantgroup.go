package core

import (
	"regexp"
	"strings"
	"sync"
)

const variantGroupDepth = 5

var variantGroupPatterns sync.Map

// variantGroupPattern matches the innermost group `prefix<sep>(a b c)`.
func variantGroupPattern(separators []string) *regexp.Regexp {
	key := strings.Join(separators, "\x00")
	if re, ok := variantGroupPatterns.Load(key); ok {
		return re.(*regexp.Regexp)
	}
	quoted := make([]string, len(separators))
	for i, s := range separators {
		quoted[i] = regexp.QuoteMeta(s)
	}
	re := regexp.MustCompile(`((?:[!@<~\w+:_/-]|\[&?>?:?\S*?\])+?)(` + strings.Join(quoted, "|") +
		`)\(((?:[~!<>\w\s:/\\,%#.$?-]|\[.*?\])+?)\)`)
	variantGroupPatterns.Store(key, re)
	return re
}

// ExpandVariantGroup unfolds grouped utilities in s, e.g.
// "hover:(bg-red text-white)" becomes "hover:bg-red hover:text-white".
// Groups nest; "~" stands for the prefix itself and a leading "!" stays in
// front. Text outside groups is left untouched.
func ExpandVariantGroup(s string, separators ...string) string {
	if len(separators) == 0 {
		separators = []string{":", "-"}
	}
	return expandVariantGroup(s, variantGroupPattern(separators), variantGroupDepth)
}

func expandVariantGroup(s string, re *regexp.Regexp, depth int) string {
	for ; depth > 0 && strings.Contains(s, "("); depth-- {
		locs := re.FindAllStringSubmatchIndex(s, -1)
		var b strings.Builder
		last, changed := 0, false
		for _, loc := range locs {
			if strings.HasPrefix(strings.TrimLeft(s[loc[1]:], " \t\r\n"), "=>") {
				continue
			}
			pre, sep, body := s[loc[2]:loc[3]], s[loc[4]:loc[5]], s[loc[6]:loc[7]]
			items := strings.Fields(body)
			expanded := make([]string, 0, len(items))
			for _, item := range items {
				if item == "~" {
					expanded = append(expanded, pre)
					continue
				}
				important := ""
				if rest, ok := strings.CutPrefix(item, "!"); ok {
					important, item = "!", rest
				}
				expanded = append(expanded, important+pre+sep+item)
			}
			b.WriteString(s[last:loc[0]])
			b.WriteString(strings.Join(expanded, " "))
			last, changed = loc[1], true
		}
		if !changed {
			break
		}
		b.WriteString(s[last:])
		s = b.String()
	}
	return s
}
