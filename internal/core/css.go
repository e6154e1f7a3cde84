package core

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ErrInvalidRuleResult is returned when a handler yields a value outside the
// CSSValue set.
var ErrInvalidRuleResult = errors.New("invalid rule result")

// cssUnit is one normalized declaration block.
type cssUnit struct {
	raw     string
	isRaw   bool
	entries CSSEntries
	out     *RuleOutput
}

// normalizeCSSValue flattens a handler result into declaration blocks.
// Empty blocks are dropped; a *RuleOutput is kept even without entries
// because its controls still apply.
func normalizeCSSValue(v CSSValue) ([]cssUnit, error) {
	var units []cssUnit
	var walk func(v CSSValue) error
	walk = func(v CSSValue) error {
		switch val := v.(type) {
		case nil:
		case CSSEntries:
			if len(val) > 0 {
				units = append(units, cssUnit{entries: val})
			}
		case CSSObject:
			if len(val) > 0 {
				units = append(units, cssUnit{entries: objectEntries(val)})
			}
		case RawCSS:
			if val != "" {
				units = append(units, cssUnit{raw: string(val), isRaw: true})
			}
		case CSSList:
			for _, item := range val {
				if err := walk(item); err != nil {
					return err
				}
			}
		case CSSSeq:
			var err error
			val(func(item CSSValue) bool {
				err = walk(item)
				return err == nil
			})
			return err
		case *RuleOutput:
			if val != nil {
				units = append(units, cssUnit{entries: val.Entries, out: val})
			}
		default:
			return fmt.Errorf("%w: %T", ErrInvalidRuleResult, v)
		}
		return nil
	}
	if err := walk(v); err != nil {
		return nil, err
	}
	return units, nil
}

// normalizeShortcutCSS turns an inline shortcut part into entries.
func normalizeShortcutCSS(p ShortcutPart) CSSEntries {
	switch val := p.(type) {
	case CSSEntries:
		return val
	case CSSObject:
		return objectEntries(val)
	}
	return nil
}

func objectEntries(obj CSSObject) CSSEntries {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	entries := make(CSSEntries, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, CSSEntry{Prop: k, Value: obj[k]})
	}
	return entries
}

// EntriesToCSS serializes entries into a declaration body. Entries without
// a value and exact repeats of an earlier entry are skipped.
func EntriesToCSS(entries CSSEntries) string {
	var b strings.Builder
	for i, e := range entries {
		if e.Prop == "" || e.Value == "" {
			continue
		}
		if slices.Contains(entries[:i], e) {
			continue
		}
		b.WriteString(e.Prop)
		b.WriteByte(':')
		b.WriteString(e.Value)
		b.WriteByte(';')
	}
	return b.String()
}

// attributifyPattern matches tokens written as attribute selectors,
// e.g. [text~="red"].
var attributifyPattern = regexp.MustCompile(`^\[(.+?)(~?=)"(.*)"\]$`)

// ToEscapedSelector converts a raw token into a selector: an attribute
// selector for attribute-style tokens, otherwise an escaped class.
func ToEscapedSelector(raw string) string {
	if m := attributifyPattern.FindStringSubmatch(raw); m != nil {
		return "[" + EscapeSelector(m[1]) + m[2] + `"` + EscapeSelector(m[3]) + `"]`
	}
	return "." + EscapeSelector(raw)
}

// EscapeSelector escapes s for use as a CSS identifier, following the
// CSSOM serialize-an-identifier algorithm.
func EscapeSelector(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		switch {
		case r == 0:
			b.WriteRune('�')
		case (r >= 0x1 && r <= 0x1f) || r == 0x7f:
			fmt.Fprintf(&b, "\\%x ", r)
		case i == 0 && r >= '0' && r <= '9':
			fmt.Fprintf(&b, "\\%x ", r)
		case i == 1 && r >= '0' && r <= '9' && runes[0] == '-':
			fmt.Fprintf(&b, "\\%x ", r)
		case i == 0 && r == '-' && len(runes) == 1:
			b.WriteString(`\-`)
		case r >= 0x80 || r == '-' || r == '_' ||
			(r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

func applyScope(selector, scope string) string {
	if scope == "" || selector == "" {
		return selector
	}
	return scope + " " + selector
}
