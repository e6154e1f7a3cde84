package core

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrTooManyVariants means the variant loop exceeded maxVariantHandlers
	// for one token, which points at a cycle in the variant config.
	ErrTooManyVariants = errors.New("too many variants applied")
	// ErrMultiPassBranch means a multi-pass variant returned several handlers.
	ErrMultiPassBranch = errors.New("multi-pass variant returned multiple handlers")
)

// Generator turns tokens into CSS for one resolved config. It is safe for
// concurrent use.
type Generator struct {
	mu     sync.RWMutex
	config *ResolvedConfig
	epoch  uint64

	cache  *TokenCache
	flight singleflight.Group

	stateMu      sync.Mutex
	blocked      map[string]struct{}
	parentOrders map[string]int
	activated    map[*Rule]struct{}
	warned       map[string]struct{}

	listenersMu sync.Mutex
	listeners   map[int]func(*ResolvedConfig)
	nextID      int
}

// CreateGenerator resolves config against defaults and returns a ready
// generator. Preset and config errors surface here, never per token.
func CreateGenerator(ctx context.Context, config, defaults UserConfig) (*Generator, error) {
	resolved, err := ResolveConfig(ctx, config, defaults)
	if err != nil {
		return nil, fmt.Errorf("resolve config: %w", err)
	}
	g := &Generator{
		config:       resolved,
		cache:        newTokenCache(),
		blocked:      make(map[string]struct{}),
		parentOrders: make(map[string]int),
		activated:    make(map[*Rule]struct{}),
		warned:       make(map[string]struct{}),
		listeners:    make(map[int]func(*ResolvedConfig)),
	}
	return g, nil
}

// SetConfig replaces the config and clears every piece of state derived
// from the old one. On error the previous config stays in place.
func (g *Generator) SetConfig(ctx context.Context, config, defaults UserConfig) error {
	resolved, err := ResolveConfig(ctx, config, defaults)
	if err != nil {
		return fmt.Errorf("resolve config: %w", err)
	}

	g.mu.Lock()
	g.config = resolved
	g.epoch++
	g.cache.clear()
	g.stateMu.Lock()
	clear(g.blocked)
	clear(g.parentOrders)
	clear(g.activated)
	clear(g.warned)
	g.stateMu.Unlock()
	g.mu.Unlock()

	g.emitConfig(resolved)
	return nil
}

// Config returns the current resolved config. Callers must not modify it.
func (g *Generator) Config() *ResolvedConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.config
}

// Cache exposes the token cache.
func (g *Generator) Cache() *TokenCache {
	return g.cache
}

// Blocked reports whether raw was rejected by the blocklist.
func (g *Generator) Blocked(raw string) bool {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	_, ok := g.blocked[raw]
	return ok
}

// ActivatedRules returns the rules that produced CSS so far, in
// declaration order.
func (g *Generator) ActivatedRules() []*Rule {
	cfg := g.Config()
	g.stateMu.Lock()
	rules := slices.Collect(maps.Keys(g.activated))
	g.stateMu.Unlock()
	slices.SortFunc(rules, func(a, b *Rule) int { return cfg.RuleIndex(a) - cfg.RuleIndex(b) })
	return rules
}

// OnConfig subscribes fn to config changes and returns the unsubscribe func.
func (g *Generator) OnConfig(fn func(*ResolvedConfig)) func() {
	g.listenersMu.Lock()
	defer g.listenersMu.Unlock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	return func() {
		g.listenersMu.Lock()
		delete(g.listeners, id)
		g.listenersMu.Unlock()
	}
}

func (g *Generator) emitConfig(cfg *ResolvedConfig) {
	g.listenersMu.Lock()
	ids := slices.Sorted(maps.Keys(g.listeners))
	fns := make([]func(*ResolvedConfig), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, g.listeners[id])
	}
	g.listenersMu.Unlock()
	for _, fn := range fns {
		fn(cfg)
	}
}

// snapshot starts a pass bound to the current config.
func (g *Generator) snapshot() *pass {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return &pass{g: g, cfg: g.config, epoch: g.epoch}
}

// withState runs fn on the shared state if the config has not changed
// since epoch. Results from a replaced config are dropped.
func (g *Generator) withState(epoch uint64, fn func()) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.epoch != epoch {
		return
	}
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	fn()
}

func (g *Generator) parentOrderSnapshot() map[string]int {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	return maps.Clone(g.parentOrders)
}

// pass carries one consistent config snapshot through a token's pipeline.
type pass struct {
	g     *Generator
	cfg   *ResolvedConfig
	epoch uint64
}

func (p *pass) activate(r *Rule) {
	p.g.withState(p.epoch, func() { p.g.activated[r] = struct{}{} })
}

func (p *pass) setParentOrder(parent string, order int) {
	p.g.withState(p.epoch, func() { p.g.parentOrders[parent] = order })
}

func (p *pass) warnOnce(msg string) {
	if !p.cfg.Warn {
		return
	}
	first := false
	p.g.withState(p.epoch, func() {
		if _, ok := p.g.warned[msg]; !ok {
			p.g.warned[msg] = struct{}{}
			first = true
		}
	})
	if first {
		p.cfg.Logger.Warn(msg)
	}
}
