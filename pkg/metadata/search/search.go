// Package search combines the in-memory index, free text matching and the
// filter evaluator into a paginated metadata search.
package search

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/openmetalab/metasync/pkg/metadata/filter"
	"github.com/openmetalab/metasync/pkg/metadata/index"
	"github.com/openmetalab/metasync/pkg/metadata/types"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type Category string

const (
	CategoryAll        Category = "all"
	CategoryAttributes Category = "attributes"
	CategorySets       Category = "sets"
	CategoryLinks      Category = "links"
)

const DefaultLimit int = 20

type Params struct {
	Term     string          `json:"term"`
	Filters  []filter.Filter `json:"filters"`
	Category Category        `json:"entityType"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}

type Hit struct {
	Category    string `json:"category"`
	ID          int64  `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Entity      any    `json:"entity"`
}

type Result struct {
	Total int    `json:"total"`
	Page  []Hit  `json:"page"`
	Hint  string `json:"hint,omitempty"`
}

// Guidance is returned instead of the unfiltered universe when a caller asks
// for everything without saying what they are looking for.
func Guidance() Result {
	return Result{
		Total: 0,
		Page:  []Hit{},
		Hint:  "enter a search term or add a filter to list metadata",
	}
}

func Search(snapshot *types.Snapshot, maps index.Maps, params Params) Result {
	if params.Term == "" && len(params.Filters) == 0 && params.Offset == 0 {
		return Guidance()
	}

	category := params.Category
	if category == "" {
		category = CategoryAll
	}

	hits := make([]Hit, 0, 32)

	if category == CategoryAll || category == CategoryAttributes {
		for _, attr := range snapshot.Attributes {
			if !isCandidate(params.Term, attr.Name, attr.Description, attr.ID) {
				continue
			}
			if !filter.Matches(attr, params.Filters) {
				continue
			}

			label := attr.Name
			if entry, ok := maps.AttributeByID[attr.ID]; ok {
				label = fmt.Sprintf("%s (%s)", entry.Name, entry.ParentSetName)
			}

			hits = append(hits, Hit{
				Category:    "attribute",
				ID:          attr.ID,
				Label:       label,
				Description: attr.Description,
				Entity:      attr,
			})
		}
	}

	if category == CategoryAll || category == CategorySets {
		for _, set := range snapshot.Sets {
			if !isCandidate(params.Term, set.Name, set.Description, set.ID) {
				continue
			}
			if !filter.Matches(set, params.Filters) {
				continue
			}

			hits = append(hits, Hit{
				Category:    "set",
				ID:          set.ID,
				Label:       set.Name,
				Description: set.Description,
				Entity:      set,
			})
		}
	}

	if category == CategoryAll || category == CategoryLinks {
		for _, lt := range snapshot.LinkTypes {
			if !isCandidate(params.Term, lt.Name, "", lt.ID) {
				continue
			}
			if !filter.Matches(lt, params.Filters) {
				continue
			}

			hits = append(hits, Hit{
				Category: "link",
				ID:       lt.ID,
				Label:    lt.Name,
				Entity:   lt,
			})
		}
	}

	// stable sort keeps category-major source order between equal labels
	collator := collate.New(language.Und)
	sort.SliceStable(hits, func(i, j int) bool {
		return collator.CompareString(hits[i].Label, hits[j].Label) < 0
	})

	total := len(hits)

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	start := params.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}

	end := start + limit
	if end > total {
		end = total
	}

	return Result{
		Total: total,
		Page:  hits[start:end],
	}
}

func isCandidate(term, name, description string, id int64) bool {
	if term == "" {
		return true
	}

	term = strings.ToLower(term)

	if strings.Contains(strings.ToLower(name), term) {
		return true
	}

	if description != "" && strings.Contains(strings.ToLower(description), term) {
		return true
	}

	return strings.Contains(strconv.FormatInt(id, 10), term)
}
