package extraction

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/caseforge-backend/internal/domain/analysis"
	"github.com/yungbote/caseforge-backend/internal/domain/criteria"
)

// DeepMerge returns base with overlay merged into it. Objects present on both
// sides merge recursively; every other overlay value (arrays included)
// replaces the base value. Neither input is modified.
func DeepMerge(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = cloneValue(v)
	}
	for k, ov := range overlay {
		om, overlayIsObj := ov.(map[string]any)
		bm, baseIsObj := out[k].(map[string]any)
		if overlayIsObj && baseIsObj {
			out[k] = DeepMerge(bm, om)
			continue
		}
		out[k] = cloneValue(ov)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return DeepMerge(t, nil)
	case []any:
		cp := make([]any, len(t))
		for i := range t {
			cp[i] = cloneValue(t[i])
		}
		return cp
	default:
		return v
	}
}

// Merge folds survey answers into an extraction. Survey answers use the same
// keys as the extraction JSON; answers whose type does not fit the extraction
// field they name are skipped. Items and personal info that the survey
// changed or introduced are tagged source=survey; the result is normalized.
func Merge(ext analysis.Extraction, survey map[string]any) (analysis.Extraction, error) {
	if len(survey) == 0 {
		return Normalize(ext), nil
	}
	base, err := toMap(ext)
	if err != nil {
		return analysis.Extraction{}, fmt.Errorf("encode extraction: %w", err)
	}
	merged, err := decode(DeepMerge(base, fitting(base, survey)))
	if err != nil {
		return analysis.Extraction{}, fmt.Errorf("decode merged extraction: %w", err)
	}

	if !samePersonalInfo(ext.PersonalInfo, merged.PersonalInfo) {
		merged.PersonalInfo.Source = analysis.SourceSurvey
	} else if merged.PersonalInfo.Source == "" {
		merged.PersonalInfo.Source = analysis.SourceExtracted
	}

	merged.Each(func(category string, items *[]analysis.EvidenceItem) {
		before := *ext.Category(category)
		for i := range *items {
			it := &(*items)[i]
			prev, ok := counterpart(before, *it, i)
			switch {
			case !ok || !sameItem(prev, *it):
				it.Source = analysis.SourceSurvey
			case prev.Source != "":
				it.Source = prev.Source
			}
		}
	})
	return Normalize(merged), nil
}

// Normalize fills the invariants every persisted extraction carries: item ids
// and categories, non-empty mapped criteria, source tags and a ten-entry
// criteria summary whose counts match the items.
func Normalize(ext analysis.Extraction) analysis.Extraction {
	if ext.PersonalInfo.Source == "" {
		ext.PersonalInfo.Source = analysis.SourceExtracted
	}
	ext.Each(func(category string, items *[]analysis.EvidenceItem) {
		if *items == nil {
			*items = []analysis.EvidenceItem{}
		}
		for i := range *items {
			it := &(*items)[i]
			it.Category = category
			if strings.TrimSpace(it.ID) == "" {
				it.ID = newItemID(category)
			}
			if it.Source == "" {
				it.Source = analysis.SourceExtracted
			}
			it.MappedCriteria = validCriteria(it.MappedCriteria)
			if len(it.MappedCriteria) == 0 {
				it.MappedCriteria = criteria.ForCategory(category)
			}
		}
	})
	ext.CriteriaSummary = Summarize(ext)
	return ext
}

// Summarize derives the ten criteria summary entries. Strength and rationale
// carry over from the existing summary; evidence counts are always recounted.
func Summarize(ext analysis.Extraction) []analysis.CriterionSummary {
	out := make([]analysis.CriterionSummary, 0, criteria.Count)
	for _, id := range criteria.IDs() {
		n := len(ext.ItemsFor(id))
		entry, ok := ext.Summary(id)
		if !ok {
			entry = analysis.CriterionSummary{Criterion: id, Strength: criteria.StrengthNone}
			if n > 0 {
				entry.Strength = criteria.StrengthWeak
			}
		}
		entry.Criterion = id
		if entry.Strength == "" {
			entry.Strength = criteria.StrengthNone
		}
		entry.EvidenceCount = n
		out = append(out, entry)
	}
	return out
}

func validCriteria(ids []criteria.ID) []criteria.ID {
	if len(ids) == 0 {
		return ids
	}
	seen := make(map[criteria.ID]bool, len(ids))
	out := make([]criteria.ID, 0, len(ids))
	for _, raw := range ids {
		id, err := criteria.Parse(string(raw))
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// counterpart finds the pre-merge version of it: same id when it has one,
// otherwise the item at the same position.
func counterpart(before []analysis.EvidenceItem, it analysis.EvidenceItem, idx int) (analysis.EvidenceItem, bool) {
	if it.ID != "" {
		for _, b := range before {
			if b.ID == it.ID {
				return b, true
			}
		}
		return analysis.EvidenceItem{}, false
	}
	if idx < len(before) && before[idx].ID == "" {
		return before[idx], true
	}
	return analysis.EvidenceItem{}, false
}

func sameItem(a, b analysis.EvidenceItem) bool {
	a.Source, b.Source = "", ""
	a.Category, b.Category = "", ""
	return reflect.DeepEqual(a, b)
}

func samePersonalInfo(a, b analysis.PersonalInfo) bool {
	a.Source, b.Source = "", ""
	return a == b
}

// CheckSurvey reports the first survey answer whose type does not fit the
// extraction field it names.
func CheckSurvey(survey map[string]any) error {
	if len(survey) == 0 {
		return nil
	}
	_, err := decode(survey)
	return err
}

// fitting returns the part of overlay that can be merged into base without
// breaking the extraction shape. Objects that meet an object in base are
// checked key by key; any other value is kept or dropped whole.
func fitting(base, overlay map[string]any) map[string]any {
	accepted := map[string]any{}
	var walk func(path []string, level map[string]any)
	walk = func(path []string, level map[string]any) {
		keys := make([]string, 0, len(level))
		for k := range level {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := level[k]
			p := append(append([]string{}, path...), k)
			if om, ok := v.(map[string]any); ok {
				if _, ok := lookup(base, p).(map[string]any); ok {
					walk(p, om)
					continue
				}
			}
			candidate := DeepMerge(accepted, nested(p, v))
			if _, err := decode(DeepMerge(base, candidate)); err == nil {
				accepted = candidate
			}
		}
	}
	walk(nil, overlay)
	return accepted
}

func lookup(m map[string]any, path []string) any {
	var cur any = m
	for _, k := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[k]
	}
	return cur
}

func nested(path []string, v any) map[string]any {
	out := map[string]any{path[len(path)-1]: v}
	for i := len(path) - 2; i >= 0; i-- {
		out = map[string]any{path[i]: out}
	}
	return out
}

func decode(m map[string]any) (analysis.Extraction, error) {
	var out analysis.Extraction
	raw, err := json.Marshal(m)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(raw, &out)
	return out, err
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func newItemID(category string) string {
	prefix := category
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}
