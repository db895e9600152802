// Package resolve turns the numeric experience and variation ids found in a
// decoded cookie into the human readable keys configured in Convert.
package resolve

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/campaigntrip/convertapi/internal/cookie"
)

// Excluded replaces variation id "1", which Convert writes for visitors kept
// out of an experience.
const Excluded = "*Excluded*"

const excludedVariantID = "1"

// Maps holds the lookups built from an experience listing.
type Maps struct {
	Experiences map[string]string            // experience id -> experience key
	Variants    map[string]map[string]string // experience id -> variation id -> variation key
}

// NewMaps returns empty lookups.
func NewMaps() *Maps {
	return &Maps{
		Experiences: make(map[string]string),
		Variants:    make(map[string]map[string]string),
	}
}

// AddExperience records the key of an experience.
func (m *Maps) AddExperience(id, key string) {
	m.Experiences[id] = key
}

// AddVariant records the key of a variation under its experience.
func (m *Maps) AddVariant(experienceID, variantID, key string) {
	vs, ok := m.Variants[experienceID]
	if !ok {
		vs = make(map[string]string)
		m.Variants[experienceID] = vs
	}
	vs[variantID] = key
}

// ExperienceKey looks up the key of an experience.
func (m *Maps) ExperienceKey(id string) (string, bool) {
	k, ok := m.Experiences[id]
	return k, ok
}

// VariantKey looks up the key of a variation.
func (m *Maps) VariantKey(experienceID, variantID string) (string, bool) {
	k, ok := m.Variants[experienceID][variantID]
	return k, ok
}

// Entry is one translated experience: its goal data copied verbatim and the
// variation the visitor was bucketed into.
type Entry struct {
	Goals   any    `json:"g"`
	Variant string `json:"v"`
}

// Translator rewrites cookie experience data using Maps. Unknown ids are
// logged and skipped rather than failing the whole translation.
type Translator struct {
	Logger *slog.Logger

	// LabelWithID renders keys as "<key> (<id>)" instead of "<key>".
	LabelWithID bool
}

// Translate maps every known experience id in exps to its key.
//
// Variations resolve to their key when known, to Excluded when the id is
// "1", and otherwise keep the raw id with a warning.
func (t *Translator) Translate(exps map[string]any, maps *Maps) map[string]Entry {
	out := make(map[string]Entry, len(exps))

	ids := make([]string, 0, len(exps))
	for id := range exps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		key, ok := maps.ExperienceKey(id)
		if !ok {
			t.warn("could not find experience id in experience map", "experience_id", id)
			continue
		}

		data, ok := exps[id].(map[string]any)
		if !ok {
			t.warn("experience data is not an object", "experience_id", id)
			continue
		}

		label := key
		if t.LabelWithID {
			label = fmt.Sprintf("%s (%s)", key, id)
		}

		variantID := idString(data["v"])
		variant, found := maps.VariantKey(id, variantID)
		switch {
		case found:
		case variantID == excludedVariantID:
			variant = Excluded
		default:
			t.warn("could not find variant id in variant map",
				"variant_id", variantID, "experience_id", id)
			variant = variantID
		}

		out[label] = Entry{Goals: data["g"], Variant: variant}
	}

	return out
}

// TranslateField translates the container stored under key in a field
// decoded with cookie.DecodeField.
func (t *Translator) TranslateField(data cookie.Data, key string, maps *Maps) (map[string]Entry, error) {
	v, ok := data.Field(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", cookie.ErrFieldNotFound, key)
	}
	exps, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an object", cookie.ErrMalformedCookie, key)
	}
	return t.Translate(exps, maps), nil
}

// TranslateCookie returns a copy of a fully decoded cookie whose experiences
// container has been translated. The container is left as decoded when
// nothing could be translated.
func (t *Translator) TranslateCookie(data cookie.Data, maps *Maps) (cookie.Data, error) {
	exps, err := data.Experiences()
	if err != nil {
		return nil, err
	}

	out := make(cookie.Data, len(data))
	for k, v := range data {
		out[k] = v
	}
	if translated := t.Translate(exps, maps); len(translated) > 0 {
		out[cookie.ExperiencesKey] = translated
	}
	return out, nil
}

func (t *Translator) warn(msg string, args ...any) {
	if t.Logger != nil {
		t.Logger.Warn(msg, args...)
	}
}

// idString renders a decoded id the way the API map keys are written.
func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}
