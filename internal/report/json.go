package report

import (
	"cmp"
	"encoding/json"
	"io"
	"slices"
	"time"

	"github.com/yacobolo/atomcss/internal/core"
)

// JSONOutput is the schema of --format json.
type JSONOutput struct {
	Version   string      `json:"version"`
	Timestamp string      `json:"timestamp"`
	Summary   JSONSummary `json:"summary"`
	Layers    []JSONLayer `json:"layers"`
	Tokens    []JSONToken `json:"tokens,omitempty"`
	CSS       string      `json:"css"`
}

// JSONSummary mirrors Stats.
type JSONSummary struct {
	FilesScanned int     `json:"files_scanned"`
	Tokens       int     `json:"tokens"`
	Matched      int     `json:"matched"`
	MatchRate    float64 `json:"match_rate"`
	Bytes        int     `json:"bytes"`
}

// JSONLayer is one rendered layer.
type JSONLayer struct {
	Name string `json:"name"`
	CSS  string `json:"css"`
}

// JSONToken is a matched token with its utilities. Only present when the
// generation ran with extended info.
type JSONToken struct {
	Token string     `json:"token"`
	Count int        `json:"count"`
	Utils []JSONUtil `json:"utils"`
}

// JSONUtil is one rendered rule of a token.
type JSONUtil struct {
	Selector string `json:"selector,omitempty"`
	Parent   string `json:"parent,omitempty"`
	Layer    string `json:"layer"`
	Body     string `json:"body"`
}

// WriteJSON writes gen as indented JSON.
func WriteJSON(w io.Writer, gen Generation) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(buildJSONOutput(gen))
}

func buildJSONOutput(gen Generation) JSONOutput {
	ts := gen.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	out := JSONOutput{
		Version:   gen.Version,
		Timestamp: ts.UTC().Format(time.RFC3339),
		Summary: JSONSummary{
			FilesScanned: gen.Stats.FilesScanned,
			Tokens:       gen.Stats.Tokens,
			Matched:      gen.Stats.Matched,
			MatchRate:    gen.Stats.MatchRate(),
			Bytes:        gen.Stats.Bytes,
		},
		Layers: []JSONLayer{},
		CSS:    gen.CSS,
	}

	res := gen.Result
	if res == nil {
		return out
	}
	for _, layer := range res.Layers {
		out.Layers = append(out.Layers, JSONLayer{Name: layer, CSS: res.GetLayer(layer)})
	}

	tokens := make([]string, 0, len(res.MatchedInfo))
	for token := range res.MatchedInfo {
		tokens = append(tokens, token)
	}
	slices.Sort(tokens)
	for _, token := range tokens {
		info := res.MatchedInfo[token]
		jt := JSONToken{Token: token, Count: info.Count}
		for _, u := range info.Data {
			jt.Utils = append(jt.Utils, JSONUtil{
				Selector: u.Selector,
				Parent:   u.Parent,
				Layer:    cmp.Or(u.Meta.Layer, core.LayerDefault),
				Body:     u.Body,
			})
		}
		out.Tokens = append(out.Tokens, jt)
	}
	return out
}
