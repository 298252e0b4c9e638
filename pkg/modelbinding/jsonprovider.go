package modelbinding

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// JSONValueProvider serves values from a JSON document using model names
// as paths ("a.b", "items[0].name"). Object keys match case-insensitively
// when there is no exact match.
type JSONValueProvider struct {
	root gjson.Result
}

// NewJSONValueProvider parses body. Invalid JSON yields a provider with no
// values.
func NewJSONValueProvider(body []byte) *JSONValueProvider {
	if !gjson.ValidBytes(body) {
		return &JSONValueProvider{}
	}
	return &JSONValueProvider{root: gjson.ParseBytes(body)}
}

// Source returns SourceBody.
func (p *JSONValueProvider) Source() BindingSource { return SourceBody }

// ContainsPrefix implements ValueProvider.
func (p *JSONValueProvider) ContainsPrefix(prefix string) bool {
	return p.lookup(prefix).Exists()
}

// GetValue implements ValueProvider. Objects have no value of their own;
// arrays of scalars yield one value per element.
func (p *JSONValueProvider) GetValue(key string) ValueProviderResult {
	r := p.lookup(key)
	if !r.Exists() || r.Type == gjson.Null {
		return NoValue
	}
	if r.IsObject() {
		return NoValue
	}
	if r.IsArray() {
		var vals []string
		for _, el := range r.Array() {
			if el.IsObject() || el.IsArray() {
				return NoValue
			}
			vals = append(vals, el.String())
		}
		if len(vals) == 0 {
			return NoValue
		}
		return ValueProviderResult{Values: vals}
	}
	return ValueProviderResult{Values: []string{r.String()}}
}

func (p *JSONValueProvider) lookup(path string) gjson.Result {
	cur := p.root
	if !cur.Exists() {
		return cur
	}
	for _, seg := range splitModelName(path) {
		if !cur.Exists() {
			return cur
		}
		if seg.index {
			i, err := strconv.Atoi(seg.name)
			if err != nil || !cur.IsArray() {
				return gjson.Result{}
			}
			arr := cur.Array()
			if i < 0 || i >= len(arr) {
				return gjson.Result{}
			}
			cur = arr[i]
			continue
		}
		cur = objectField(cur, seg.name)
	}
	return cur
}

func objectField(obj gjson.Result, name string) gjson.Result {
	if !obj.IsObject() {
		return gjson.Result{}
	}
	if r := obj.Get(gjsonEscape(name)); r.Exists() {
		return r
	}
	var found gjson.Result
	obj.ForEach(func(k, v gjson.Result) bool {
		if strings.EqualFold(k.String(), name) {
			found = v
			return false
		}
		return true
	})
	return found
}

func gjsonEscape(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

type nameSegment struct {
	name  string
	index bool
}

// splitModelName splits "a.b[0].c" into a, b, [0], c.
func splitModelName(name string) []nameSegment {
	var segs []nameSegment
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			segs = append(segs, nameSegment{name: cur.String()})
			cur.Reset()
		}
	}
	for i := 0; i < len(name); i++ {
		switch c := name[i]; c {
		case '.':
			flush()
		case '[':
			flush()
			end := strings.IndexByte(name[i:], ']')
			if end < 0 {
				cur.WriteString(name[i:])
				i = len(name)
				continue
			}
			segs = append(segs, nameSegment{name: name[i+1 : i+end], index: true})
			i += end
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return segs
}
