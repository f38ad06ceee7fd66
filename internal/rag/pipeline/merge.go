package pipeline

import (
	"strings"
	"unicode"

	"github.com/yungbote/graphrag-core/internal/domain/graphrag"
)

// KeywordEntities returns up to limit entities whose name or description mentions any
// question word of three or more letters, in pool order.
func KeywordEntities(question string, pool []graphrag.Entity, limit int) []graphrag.Entity {
	var kws []string
	for _, w := range strings.Fields(strings.ToLower(question)) {
		w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if len([]rune(w)) >= 3 {
			kws = append(kws, w)
		}
	}
	out := []graphrag.Entity{}
	if len(kws) == 0 || limit <= 0 {
		return out
	}
	for _, e := range pool {
		txt := strings.ToLower(e.Name + " " + e.Description)
		for _, kw := range kws {
			if strings.Contains(txt, kw) {
				out = append(out, e)
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

// MergeEntities concatenates lists, keeps the first occurrence of each entity and stops at
// limit. Entities are the same when their ids match, or their (name, type) when ids are blank.
func MergeEntities(limit int, lists ...[]graphrag.Entity) []graphrag.Entity {
	seen := map[string]struct{}{}
	out := []graphrag.Entity{}
	for _, l := range lists {
		for _, e := range l {
			if len(out) == limit {
				return out
			}
			k := e.ID
			if k == "" {
				nk := e.NaturalKey()
				k = "\x00" + nk[0] + "\x00" + nk[1]
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

func dedupeRelations(in []graphrag.Relation) []graphrag.Relation {
	type key struct{ s, t, typ string }
	seen := make(map[key]struct{}, len(in))
	out := make([]graphrag.Relation, 0, len(in))
	for _, r := range in {
		k := key{r.Source, r.Target, r.Type}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
