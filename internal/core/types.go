package core

import (
	"context"
	"iter"
	"regexp"
	"slices"
)

// Layer names the engine knows about out of the box.
const (
	LayerDefault    = "default"
	LayerPreflights = "preflights"
	LayerShortcuts  = "shortcuts"
)

// DefaultLayers is the priority map every resolved config starts from.
// Lower numbers render first.
var DefaultLayers = map[string]int{
	LayerPreflights: -20,
	LayerShortcuts:  -10,
	LayerDefault:    0,
}

// CSSEntry is a single declaration. Entries with an empty Prop or Value are
// dropped when the body is serialized.
type CSSEntry struct {
	Prop  string
	Value string
}

// CSSValue is what a rule handler produces. It is a closed set:
//
//   - CSSEntries: ordered declarations
//   - CSSObject: unordered declarations, serialized with keys sorted
//   - RawCSS: pre-formatted CSS emitted as-is
//   - CSSList: several independent declaration blocks
//   - CSSSeq: a lazily produced sequence, drained before use
//   - *RuleOutput: declarations plus variant/layer/sort overrides
type CSSValue interface {
	isCSSValue()
}

// CSSEntries is an ordered list of declarations.
type CSSEntries []CSSEntry

// CSSObject is a property to value map.
type CSSObject map[string]string

// RawCSS is literal CSS that bypasses entry normalization.
type RawCSS string

// CSSList holds several values produced by one rule.
type CSSList []CSSValue

// CSSSeq yields values one by one; nil values are skipped.
type CSSSeq iter.Seq[CSSValue]

// RuleOutput carries declarations together with the per-entry controls a
// rule may need without touching the variant machinery directly.
type RuleOutput struct {
	Entries CSSEntries

	// Variants are prepended to the handler chain of the matched token.
	Variants []*VariantHandler
	// VariantsFunc may replace the handler chain entirely.
	VariantsFunc func([]*VariantHandler) []*VariantHandler

	Parent   string
	Selector func(selector string) string
	Layer    string
	Sort     int
	NoMerge  bool
}

func (CSSEntries) isCSSValue()  {}
func (CSSObject) isCSSValue()   {}
func (RawCSS) isCSSValue()      {}
func (CSSList) isCSSValue()     {}
func (CSSSeq) isCSSValue()      {}
func (*RuleOutput) isCSSValue() {}

// E builds CSSEntries from alternating property/value pairs. A trailing
// property without value is ignored.
func E(pairs ...string) CSSEntries {
	entries := make(CSSEntries, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		entries = append(entries, CSSEntry{Prop: pairs[i], Value: pairs[i+1]})
	}
	return entries
}

// RuleMeta holds the optional settings of a rule or shortcut.
type RuleMeta struct {
	Prefix   []string
	Layer    string
	Internal bool
	Sort     int
	NoMerge  bool
}

func (m *RuleMeta) clone() *RuleMeta {
	if m == nil {
		return &RuleMeta{}
	}
	c := *m
	c.Prefix = slices.Clone(m.Prefix)
	return &c
}

// RuleHandler turns the submatches of a dynamic rule into CSS. Returning a
// nil value means "no match" and the next rule is tried.
type RuleHandler func(ctx context.Context, match []string, rc *RuleContext) (CSSValue, error)

// Rule maps a token to CSS. A rule is either static (Static set, CSS set,
// no Handler) or dynamic (Pattern set, Handler set). A Static literal with a
// Handler is matched exactly but evaluated like a dynamic rule.
type Rule struct {
	Static  string
	Pattern *regexp.Regexp
	CSS     CSSValue
	Handler RuleHandler
	Meta    *RuleMeta
}

// StaticRule declares a literal token with a fixed CSS value.
func StaticRule(token string, css CSSValue, meta ...RuleMeta) *Rule {
	return &Rule{Static: token, CSS: css, Meta: firstMeta(meta)}
}

// DynamicRule declares a pattern rule. The pattern is compiled with
// regexp.MustCompile.
func DynamicRule(pattern string, handler RuleHandler, meta ...RuleMeta) *Rule {
	return &Rule{Pattern: regexp.MustCompile(pattern), Handler: handler, Meta: firstMeta(meta)}
}

// IsStatic reports whether the rule can be served from the static lookup map.
func (r *Rule) IsStatic() bool {
	return r.Pattern == nil && r.Handler == nil
}

// Name is the literal of a static rule or the pattern source.
func (r *Rule) Name() string {
	if r.Pattern != nil {
		return r.Pattern.String()
	}
	return r.Static
}

func (r *Rule) meta() *RuleMeta {
	if r.Meta == nil {
		return &RuleMeta{}
	}
	return r.Meta
}

func firstMeta(meta []RuleMeta) *RuleMeta {
	if len(meta) == 0 {
		return nil
	}
	m := meta[0]
	return &m
}

// VariantHandlerContext is the value threaded through the variant handler
// chain when CSS is synthesized.
type VariantHandlerContext struct {
	Prefix      string
	Selector    string
	Pseudo      string
	Entries     CSSEntries
	Parent      string
	ParentOrder int
	Layer       string
	Sort        int
	NoMerge     bool
}

// VariantHandler describes how a matched variant rewrites the final CSS.
type VariantHandler struct {
	// Matcher is the token left after the variant stripped its affix.
	// Empty keeps the current token.
	Matcher string
	Order   int

	// Handle wraps the rest of the chain. When nil the handler's fields are
	// applied and next is called directly.
	Handle   func(in VariantHandlerContext, next func(VariantHandlerContext) VariantHandlerContext) VariantHandlerContext
	Selector func(selector string, entries CSSEntries) string
	Body     func(entries CSSEntries) CSSEntries

	Parent      string
	ParentOrder int
	Layer       string
	Sort        int
	NoMerge     bool
}

// rewriteOnly reports whether the handler only renames the token.
func (h *VariantHandler) rewriteOnly() bool {
	return h.Order == 0 && h.Handle == nil && h.Selector == nil && h.Body == nil &&
		h.Parent == "" && h.ParentOrder == 0 && h.Layer == "" && h.Sort == 0 && !h.NoMerge
}

// Rewrite is the handler for a variant that only strips an affix.
func Rewrite(token string) []*VariantHandler {
	return []*VariantHandler{{Matcher: token}}
}

// VariantContext is passed to variant matchers.
type VariantContext struct {
	RawSelector string
	Theme       Theme
	Separators  []string
	Generator   *Generator
}

// VariantMatchFunc returns nil when the variant does not apply, one handler
// when it does, and several handlers to branch the match.
type VariantMatchFunc func(ctx context.Context, token string, vc *VariantContext) ([]*VariantHandler, error)

// Variant recognizes an affix on a token.
type Variant struct {
	Name  string
	Match VariantMatchFunc
	// MultiPass allows the variant to apply more than once per token.
	MultiPass bool
	Order     int
}

// VariantMatchedResult is the state of one token while variants are peeled.
type VariantMatchedResult struct {
	Raw     string
	Current string
	// Handlers are ordered newest first.
	Handlers []*VariantHandler
	Applied  []*Variant
}

func (r VariantMatchedResult) clone() VariantMatchedResult {
	r.Handlers = slices.Clone(r.Handlers)
	r.Applied = slices.Clone(r.Applied)
	return r
}

func (r *VariantMatchedResult) apply(v *Variant, h *VariantHandler) {
	if h.Matcher != "" {
		r.Current = h.Matcher
	}
	handlers := make([]*VariantHandler, 0, len(r.Handlers)+1)
	handlers = append(handlers, h)
	r.Handlers = append(handlers, r.Handlers...)
	if !slices.Contains(r.Applied, v) {
		r.Applied = append(r.Applied, v)
	}
}

// ShortcutPart is one element of a shortcut expansion: Tokens, CSSEntries
// or CSSObject. CSS parts are emitted inline without rule matching.
type ShortcutPart interface {
	isShortcutPart()
}

// Tokens is a space separated list of utilities; variant groups are allowed.
type Tokens string

func (Tokens) isShortcutPart()     {}
func (CSSEntries) isShortcutPart() {}
func (CSSObject) isShortcutPart()  {}

// ShortcutExpansion is the value a shortcut expands to.
type ShortcutExpansion []ShortcutPart

// Expand is shorthand for a token-only expansion.
func Expand(tokens string) ShortcutExpansion {
	return ShortcutExpansion{Tokens(tokens)}
}

// ShortcutHandler expands a dynamic shortcut. A nil expansion is no match.
type ShortcutHandler func(ctx context.Context, match []string, rc *RuleContext) (ShortcutExpansion, error)

// Shortcut expands a token into other tokens or inline CSS.
type Shortcut struct {
	Static    string
	Pattern   *regexp.Regexp
	Expansion ShortcutExpansion
	Handler   ShortcutHandler
	Meta      *RuleMeta
}

// StaticShortcut declares a literal shortcut.
func StaticShortcut(token string, expansion ShortcutExpansion, meta ...RuleMeta) *Shortcut {
	return &Shortcut{Static: token, Expansion: expansion, Meta: firstMeta(meta)}
}

// DynamicShortcut declares a pattern shortcut.
func DynamicShortcut(pattern string, handler ShortcutHandler, meta ...RuleMeta) *Shortcut {
	return &Shortcut{Pattern: regexp.MustCompile(pattern), Handler: handler, Meta: firstMeta(meta)}
}

// Name is the literal of a static shortcut or the pattern source.
func (s *Shortcut) Name() string {
	if s.Pattern != nil {
		return s.Pattern.String()
	}
	return s.Static
}

// ParsedUtil is a rule match before stringification. Raw utilities carry
// pre-formatted CSS in RawCSS.
type ParsedUtil struct {
	Index    int
	Raw      string
	Entries  CSSEntries
	Meta     *RuleMeta
	Handlers []*VariantHandler

	IsRaw  bool
	RawCSS string
}

// StringifiedUtil is the terminal output of a token.
type StringifiedUtil struct {
	// Index is the declaration index of the rule that produced it.
	Index    int
	Selector string
	Body     string
	Parent   string
	Meta     RuleMeta
	Context  *RuleContext
	NoMerge  bool
}

// UtilObject is the synthesized shape postprocessors may rewrite.
type UtilObject struct {
	Selector string
	Entries  CSSEntries
	Parent   string
	Layer    string
	Sort     int
	NoMerge  bool
}

// Preprocessor rewrites a raw token before matching. Returning an empty
// string drops the token.
type Preprocessor func(token string) string

// Postprocessor sees every synthesized utility before serialization.
type Postprocessor func(u *UtilObject)

// PreflightContext is passed to preflight providers.
type PreflightContext struct {
	Generator *Generator
	Theme     Theme
}

// Preflight is global CSS not tied to a token.
type Preflight struct {
	Layer  string
	GetCSS func(ctx context.Context, pc *PreflightContext) (string, error)
}

func (p *Preflight) layer() string {
	if p.Layer == "" {
		return LayerPreflights
	}
	return p.Layer
}

// ExtractorContext is handed to every extractor in the pipeline.
type ExtractorContext struct {
	Code      string
	ID        string
	Extracted *CountableSet
	EnvMode   string
}

// Extractor scans source text for candidate tokens. Duplicates in the
// returned slice count as repeated occurrences.
type Extractor struct {
	Name    string
	Order   int
	Extract func(ctx context.Context, ec *ExtractorContext) ([]string, error)
}

// SafelistContext is passed to safelist functions.
type SafelistContext struct {
	Generator *Generator
	Theme     Theme
}

// SafelistFunc produces tokens that are always generated.
type SafelistFunc func(sc *SafelistContext) []string

// BlocklistRule excludes tokens by literal, pattern or predicate.
type BlocklistRule struct {
	Literal string
	Pattern *regexp.Regexp
	Match   func(token string) bool
	Message string
}

// Block returns a literal blocklist rule.
func Block(token string) *BlocklistRule {
	return &BlocklistRule{Literal: token}
}

// BlockPattern returns a pattern blocklist rule.
func BlockPattern(pattern string) *BlocklistRule {
	return &BlocklistRule{Pattern: regexp.MustCompile(pattern)}
}

// Blocks reports whether the rule excludes token.
func (b *BlocklistRule) Blocks(token string) bool {
	switch {
	case b.Match != nil:
		return b.Match(token)
	case b.Pattern != nil:
		return b.Pattern.MatchString(token)
	default:
		return b.Literal == token
	}
}

// Enforce places a preset or transformer before or after the default bucket.
type Enforce string

const (
	EnforceDefault Enforce = ""
	EnforcePre     Enforce = "pre"
	EnforcePost    Enforce = "post"
)

// Transformer rewrites source code before extraction.
type Transformer struct {
	Name      string
	Enforce   Enforce
	IDFilter  func(id string) bool
	Transform func(ctx context.Context, code, id string, g *Generator) (string, error)
}

// CSSLayerOutput turns on native @layer wrapping. CSSLayerName maps a layer
// to its alias; returning wrap=false leaves the layer unwrapped and an empty
// alias keeps the layer name.
type CSSLayerOutput struct {
	CSSLayerName func(layer string) (alias string, wrap bool)
}

func (o *CSSLayerOutput) alias(layer string) (string, bool) {
	if o == nil || o.CSSLayerName == nil {
		return layer, true
	}
	alias, wrap := o.CSSLayerName(layer)
	if !wrap {
		return "", false
	}
	if alias == "" {
		alias = layer
	}
	return alias, true
}

// Content lists where source text comes from.
type Content struct {
	Filesystem []string
	Exclude    []string
	Inline     []string
}
