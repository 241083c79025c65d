package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// SourceMetadata is the source-specific metadata record of a document. The
// common core is typed; everything else the source provides is kept verbatim
// in Extensions. Which extension keys identify the document depends on the
// source tag (see IdentifierKeys).
type SourceMetadata struct {
	Title      string
	Journal    string
	Year       int
	Authors    []string
	URL        string
	Extensions map[string]interface{}
}

const (
	metaTitle   = "title"
	metaJournal = "journal"
	metaYear    = "year"
	metaAuthors = "authors"
	metaURL     = "url"
)

var identifierKeys = map[string][]string{
	SourcePMC:           {"pmcid", "pmid", "doi"},
	SourceClinicalTrial: {"nct_id", "org_study_id"},
	SourceInternalFile:  {"source_path"},
}

// IdentifierKeys lists the metadata keys that identify a document of the given source.
func IdentifierKeys(source string) []string {
	if keys, ok := identifierKeys[source]; ok {
		return keys
	}
	return []string{"identifier"}
}

// NewSourceMetadata builds metadata from a flat field map, lifting the common core out.
func NewSourceMetadata(fields map[string]interface{}) SourceMetadata {
	var m SourceMetadata
	for k, v := range fields {
		switch strings.ToLower(k) {
		case metaTitle:
			m.Title = FormatValue(v)
		case metaJournal:
			m.Journal = FormatValue(v)
		case metaYear:
			if y, ok := ToFloat(v); ok {
				m.Year = int(y)
			} else {
				m.setExtension(k, v)
			}
		case metaAuthors:
			m.Authors = toStrings(v)
		case metaURL:
			m.URL = FormatValue(v)
		default:
			m.setExtension(k, v)
		}
	}
	return m
}

func (m *SourceMetadata) setExtension(k string, v interface{}) {
	if m.Extensions == nil {
		m.Extensions = make(map[string]interface{})
	}
	m.Extensions[k] = v
}

// Get returns a single field by name, core or extension.
func (m SourceMetadata) Get(key string) (interface{}, bool) {
	v, ok := m.Flatten()[key]
	return v, ok
}

// Set stores a field, routing core keys to their typed slot.
func (m *SourceMetadata) Set(key string, v interface{}) {
	merged := NewSourceMetadata(map[string]interface{}{key: v})
	switch strings.ToLower(key) {
	case metaTitle:
		m.Title = merged.Title
	case metaJournal:
		m.Journal = merged.Journal
	case metaYear:
		if merged.Year != 0 {
			m.Year = merged.Year
			return
		}
		m.setExtension(key, v)
	case metaAuthors:
		m.Authors = merged.Authors
	case metaURL:
		m.URL = merged.URL
	default:
		m.setExtension(key, v)
	}
}

// Flatten returns one field map combining the core and the extensions.
// It is what gets merged into chunk payloads and the metadata index.
func (m SourceMetadata) Flatten() map[string]interface{} {
	out := make(map[string]interface{}, len(m.Extensions)+5)
	for k, v := range m.Extensions {
		out[k] = v
	}
	if m.Title != "" {
		out[metaTitle] = m.Title
	}
	if m.Journal != "" {
		out[metaJournal] = m.Journal
	}
	if m.Year != 0 {
		out[metaYear] = m.Year
	}
	if len(m.Authors) > 0 {
		out[metaAuthors] = append([]string(nil), m.Authors...)
	}
	if m.URL != "" {
		out[metaURL] = m.URL
	}
	return out
}

// Identifiers returns the identifying fields for the given source tag.
func (m SourceMetadata) Identifiers(source string) map[string]string {
	flat := m.Flatten()
	out := make(map[string]string)
	for _, k := range IdentifierKeys(source) {
		if v, ok := flat[k]; ok {
			if s := FormatValue(v); s != "" {
				out[k] = s
			}
		}
	}
	return out
}

// MarshalJSON encodes the metadata as a flat object.
func (m SourceMetadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Flatten())
}

// UnmarshalJSON decodes a flat object, lifting the common core out.
func (m *SourceMetadata) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = SourceMetadata{}
		return nil
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*m = NewSourceMetadata(fields)
	return nil
}

func toStrings(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, x := range t {
			out = append(out, FormatValue(x))
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(t, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	case nil:
		return nil
	default:
		return []string{FormatValue(t)}
	}
}

// FormatValue renders a scalar metadata value in its canonical string form.
// Whole floats print without a fractional part so 2023 and 2023.0 compare equal.
func FormatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// ToFloat converts numeric values and numeric strings to float64.
func ToFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case int32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Scalars expands a metadata value into its scalar elements (arrays fan out).
func Scalars(v interface{}) []interface{} {
	switch t := v.(type) {
	case []interface{}:
		return t
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []int:
		out := make([]interface{}, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out
	case []float64:
		out := make([]interface{}, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out
	case nil:
		return nil
	default:
		return []interface{}{t}
	}
}
