package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"mindcare-chatbot-backend/apperrors"
)

// Shape identifies which of the accepted document layouts a catalog uses.
type Shape string

const (
	ShapeIntents  Shape = "intents"
	ShapeDiseases Shape = "diseases"
	ShapeList     Shape = "list"
)

// fieldAliases lists, per shape, the keys accepted for each record field in
// the order they are tried.
type fieldAliases struct {
	name      []string
	medicines []string
	doctors   []string
}

var aliases = map[Shape]fieldAliases{
	ShapeIntents: {
		name:      []string{"tag", "intent", "disease", "name"},
		medicines: []string{"medicines", "medicine"},
		doctors:   []string{"doctor", "doctors", "warangal_doctors"},
	},
	ShapeDiseases: {
		name:      []string{"name", "disease"},
		medicines: []string{"medicines", "medicines_list"},
		doctors:   []string{"warangal_doctors", "warangal_doctors_list", "doctor", "doctors"},
	},
	ShapeList: {
		name:      []string{"disease", "tag", "intent", "name"},
		medicines: []string{"medicines", "medicine"},
		doctors:   []string{"doctor", "doctors"},
	},
}

// Load reads a YAML or JSON catalog document from path and builds an Index.
func Load(path string) (*Index, Shape, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", apperrors.Configuration(err, "read catalog %s", path)
	}
	return Parse(data)
}

// Parse detects the document shape once, converts every entry to a Disease
// and builds the index. Any deviation is a configuration error.
func Parse(data []byte) (*Index, Shape, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, "", apperrors.Configuration(err, "malformed catalog document")
	}

	shape, entries, err := detectShape(doc)
	if err != nil {
		return nil, "", err
	}
	if len(entries) == 0 {
		return nil, shape, apperrors.Configuration(nil, "catalog is empty")
	}

	records := make([]Disease, 0, len(entries))
	for i, raw := range entries {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			return nil, shape, apperrors.Configuration(nil, "catalog entry %d is not a mapping", i)
		}
		rec, err := decodeEntry(entry, aliases[shape])
		if err != nil {
			return nil, shape, apperrors.Configuration(err, "catalog entry %d", i)
		}
		records = append(records, rec)
	}

	idx, err := NewIndex(records)
	if err != nil {
		return nil, shape, err
	}
	return idx, shape, nil
}

func detectShape(doc interface{}) (Shape, []interface{}, error) {
	switch v := doc.(type) {
	case []interface{}:
		return ShapeList, v, nil
	case map[string]interface{}:
		for _, shape := range []Shape{ShapeIntents, ShapeDiseases} {
			raw, ok := v[string(shape)]
			if !ok {
				continue
			}
			list, ok := raw.([]interface{})
			if !ok {
				return shape, nil, apperrors.Configuration(nil, "catalog %q must be a list", shape)
			}
			return shape, list, nil
		}
		return "", nil, apperrors.Configuration(nil, "catalog mapping has neither \"intents\" nor \"diseases\"")
	case nil:
		return "", nil, apperrors.Configuration(nil, "catalog is empty")
	default:
		return "", nil, apperrors.Configuration(nil, "unsupported catalog shape %T", doc)
	}
}

func decodeEntry(entry map[string]interface{}, fa fieldAliases) (Disease, error) {
	var rec Disease

	name, err := firstString(entry, fa.name)
	if err != nil {
		return rec, err
	}
	if name == "" {
		return rec, fmt.Errorf("missing name (one of %s)", strings.Join(fa.name, ", "))
	}
	rec.Name = name

	if raw, key := firstPresent(entry, fa.medicines); key != "" {
		meds, err := decodeMedicines(raw)
		if err != nil {
			return rec, fmt.Errorf("%s: %s: %w", name, key, err)
		}
		rec.Medicines = meds
	}

	if raw, key := firstPresent(entry, fa.doctors); key != "" {
		docs, err := decodeDoctors(raw)
		if err != nil {
			return rec, fmt.Errorf("%s: %s: %w", name, key, err)
		}
		rec.Doctors = docs
	}

	return rec, nil
}

func firstPresent(entry map[string]interface{}, keys []string) (interface{}, string) {
	for _, k := range keys {
		if v, ok := entry[k]; ok && v != nil {
			return v, k
		}
	}
	return nil, ""
}

func firstString(entry map[string]interface{}, keys []string) (string, error) {
	for _, k := range keys {
		v, ok := entry[k]
		if !ok || v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("field %q must be a string", k)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s, nil
		}
	}
	return "", nil
}

func decodeMedicines(raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}, nil
		}
		return nil, nil
	case []interface{}:
		meds := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("medicine entries must be strings, got %T", item)
			}
			if s = strings.TrimSpace(s); s != "" {
				meds = append(meds, s)
			}
		}
		return meds, nil
	default:
		return nil, fmt.Errorf("expected a list of strings, got %T", raw)
	}
}

func decodeDoctors(raw interface{}) ([]Doctor, error) {
	items, ok := raw.([]interface{})
	if !ok {
		items = []interface{}{raw}
	}

	docs := make([]Doctor, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				docs = append(docs, Doctor{Raw: s})
			}
		case map[string]interface{}:
			doc := Doctor{
				Name:           stringField(v, "name"),
				Specialization: stringField(v, "specialization"),
				Hospital:       stringField(v, "hospital"),
			}
			docs = append(docs, doc)
		default:
			return nil, fmt.Errorf("doctor entries must be mappings or strings, got %T", item)
		}
	}
	return docs, nil
}

func stringField(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
