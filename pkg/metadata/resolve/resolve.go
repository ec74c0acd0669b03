// Package resolve rewrites numeric metadata ids embedded in arbitrary JSON
// into symbolic template references. Unresolvable ids are reported as
// structured gaps next to the rewritten copy; the rendered marker that takes
// the id's place in the tree is produced by a Renderer so that callers can
// control how gaps are displayed.
package resolve

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/openmetalab/metasync/pkg/metadata/index"
)

type Hint int

const (
	HintUnknown Hint = iota
	HintSet
	HintAttribute
	HintLink
)

func (h Hint) String() string {
	switch h {
	case HintSet:
		return "set"
	case HintAttribute:
		return "attribute"
	case HintLink:
		return "link"
	default:
		return "unknown"
	}
}

// hintByKey is the key name vocabulary that decides how the value under a
// given object key should be interpreted.
var hintByKey = map[string]Hint{
	"entityClassId":  HintSet,
	"entityClassIds": HintSet,
	"classId":        HintSet,
	"attributeId":    HintAttribute,
	"attributeIds":   HintAttribute,
	"linkTypeId":     HintLink,
	"linkTypeIds":    HintLink,
}

// opaqueKey marks a payload subtree that is data, not ids, and must survive
// resolution untouched.
const opaqueKey string = "value"

type GapReason string

const (
	GapUnknownID        GapReason = "unknown-id"
	GapMissingEndpoints GapReason = "missing-endpoints"
)

// Gap describes one id that could not be rewritten to a symbolic reference.
type Gap struct {
	Path   string    `json:"path"`
	Hint   string    `json:"hint"`
	ID     int64     `json:"id"`
	Name   string    `json:"name,omitempty"`
	Reason GapReason `json:"reason"`
}

type Renderer interface {
	SetRef(name string) string
	AttributeRef(name, parentSetName string) string
	LinkRef(name, sourceSetName, targetSetName string) string
	Gap(g Gap) string
}

type templateRenderer struct{}

func (templateRenderer) SetRef(name string) string {
	return fmt.Sprintf("class(%q)", name)
}

func (templateRenderer) AttributeRef(name, parentSetName string) string {
	return fmt.Sprintf("attribute(%q, %q)", name, parentSetName)
}

func (templateRenderer) LinkRef(name, sourceSetName, targetSetName string) string {
	return fmt.Sprintf("link(%q, %q, %q)", name, sourceSetName, targetSetName)
}

func (templateRenderer) Gap(g Gap) string {
	if g.Reason == GapMissingEndpoints {
		return fmt.Sprintf("unresolved-endpoints(%q, %d)", g.Name, g.ID)
	}
	return fmt.Sprintf("unresolved(%s, %d)", g.Hint, g.ID)
}

func WithRenderer(r Renderer) func(*resolver) {
	return func(res *resolver) {
		res.renderer = r
	}
}

// Resolve returns a deep copy of value with resolvable ids replaced by
// symbolic references, plus the gaps encountered along the way. When all
// index maps are empty the copy is returned unmodified.
func Resolve(value any, maps index.Maps, options ...func(*resolver)) (any, []Gap) {
	copied := deepCopy(value)

	if maps.Empty() {
		return copied, nil
	}

	res := &resolver{
		maps:     maps,
		renderer: templateRenderer{},
	}

	for _, option := range options {
		option(res)
	}

	return res.visit(copied, HintUnknown, "$"), res.gaps
}

type resolver struct {
	maps     index.Maps
	renderer Renderer
	gaps     []Gap
}

func (r *resolver) visit(value any, hint Hint, path string) any {
	switch node := value.(type) {
	case []any:
		out := make([]any, len(node))
		for i := range node {
			out[i] = r.visit(node[i], hint, fmt.Sprintf("%s[%d]", path, i))
		}
		return out

	case map[string]any:
		// visit keys in sorted order so that the gaps slice comes out the
		// same on every run
		keys := make([]string, 0, len(node))
		for key := range node {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		out := make(map[string]any, len(node))
		for _, key := range keys {
			child := node[key]

			outKey := key
			if id, ok := parseIntKey(key); ok {
				if set, known := r.maps.SetByID[id]; known {
					outKey = r.renderer.SetRef(set.Name)
				}
			}

			if key == opaqueKey {
				out[outKey] = child
				continue
			}

			out[outKey] = r.visit(child, hintByKey[key], path+"."+key)
		}
		return out

	default:
		id, ok := intValue(node)
		if !ok {
			return node
		}
		return r.transform(id, hint, path)
	}
}

// transform maps one integer id to its symbolic reference under the active
// hint. Under the unknown hint the set, attribute and link maps are probed
// in that priority order.
func (r *resolver) transform(id int64, hint Hint, path string) any {
	switch hint {
	case HintSet:
		if set, ok := r.maps.SetByID[id]; ok {
			return r.renderer.SetRef(set.Name)
		}
		return r.gap(Gap{Path: path, Hint: hint.String(), ID: id, Reason: GapUnknownID})

	case HintAttribute:
		if attr, ok := r.maps.AttributeByID[id]; ok {
			return r.renderer.AttributeRef(attr.Name, attr.ParentSetName)
		}
		return r.gap(Gap{Path: path, Hint: hint.String(), ID: id, Reason: GapUnknownID})

	case HintLink:
		lt, ok := r.maps.LinkTypeByID[id]
		if !ok {
			return r.gap(Gap{Path: path, Hint: hint.String(), ID: id, Reason: GapUnknownID})
		}
		return r.linkRef(lt, id, path)

	default:
		if set, ok := r.maps.SetByID[id]; ok {
			return r.renderer.SetRef(set.Name)
		}
		if attr, ok := r.maps.AttributeByID[id]; ok {
			return r.renderer.AttributeRef(attr.Name, attr.ParentSetName)
		}
		if lt, ok := r.maps.LinkTypeByID[id]; ok {
			return r.linkRef(lt, id, path)
		}
		return r.gap(Gap{Path: path, Hint: hint.String(), ID: id, Reason: GapUnknownID})
	}
}

func (r *resolver) linkRef(lt index.LinkTypeEntry, id int64, path string) any {
	source, sourceOK := r.maps.SetByID[lt.SourceCollectionID]
	target, targetOK := r.maps.SetByID[lt.TargetCollectionID]

	if !sourceOK || !targetOK {
		return r.gap(Gap{Path: path, Hint: HintLink.String(), ID: id, Name: lt.Name, Reason: GapMissingEndpoints})
	}

	return r.renderer.LinkRef(lt.Name, source.Name, target.Name)
}

func (r *resolver) gap(g Gap) any {
	r.gaps = append(r.gaps, g)
	return r.renderer.Gap(g)
}

func parseIntKey(key string) (int64, bool) {
	id, err := strconv.ParseInt(key, 10, 64)
	return id, err == nil
}

func intValue(value any) (int64, bool) {
	switch v := value.(type) {
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		id, err := v.Int64()
		return id, err == nil
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		return id, err == nil
	case int:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

// deepCopy runs the value through a JSON round trip, which both detaches it
// from the caller's data and normalises it to maps, slices and JSON scalars.
func deepCopy(value any) any {
	b, err := json.Marshal(value)
	if err != nil {
		return value
	}

	var copied any
	if err := json.Unmarshal(b, &copied); err != nil {
		return value
	}

	return copied
}
