package core

import "strings"

// RuleContext is handed to rule and shortcut handlers for one token.
type RuleContext struct {
	// RawSelector is the token as written, variants included.
	RawSelector string
	// CurrentSelector is the token after variants were stripped.
	CurrentSelector string
	Generator       *Generator
	Theme           Theme

	VariantHandlers []*VariantHandler
	VariantMatch    VariantMatchedResult

	// The fields below are only filled in details mode.
	Rules     []*Rule
	Shortcuts []*Shortcut
	Variants  []*Variant

	pass *pass
}

// ConstructCSS renders entries as a complete CSS block for the current token,
// with all of its variants applied. selector replaces the default escaped
// selector when non-empty.
func (rc *RuleContext) ConstructCSS(entries CSSEntries, selector string) string {
	if selector == "" {
		selector = ToEscapedSelector(rc.RawSelector)
	}
	handlers := append([]*VariantHandler{{Selector: func(string, CSSEntries) string { return selector }}}, rc.VariantHandlers...)
	u := rc.pass.applyVariants(ParsedUtil{Raw: rc.RawSelector, Entries: entries, Handlers: handlers})
	body := EntriesToCSS(u.Entries)
	if body == "" {
		return ""
	}
	css := u.Selector + "{" + body + "}"
	if u.Parent == "" {
		return css
	}
	parents := strings.Split(u.Parent, " $$ ")
	for i := len(parents) - 1; i >= 0; i-- {
		css = parents[i] + "{" + css + "}"
	}
	return css
}

func (rc *RuleContext) recordRule(r *Rule) {
	if rc.pass.cfg.Details {
		rc.Rules = append(rc.Rules, r)
	}
}

func (rc *RuleContext) recordShortcut(s *Shortcut) {
	if rc.pass.cfg.Details {
		rc.Shortcuts = append(rc.Shortcuts, s)
	}
}
