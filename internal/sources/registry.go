// Package sources holds the registry of known commentary sources.
//
// Sources are reference data: the ingest pipeline consumes them but never
// creates or mutates them. A deployment can replace the built-in set with a
// YAML file via ingest.sources_path.
package sources

import (
	"fmt"
	"os"

	"github.com/hyperjump/tafsir/internal/models"
	"gopkg.in/yaml.v3"
)

// Registry is an immutable, ordered collection of commentary sources.
type Registry struct {
	order []string
	byID  map[string]models.CommentarySource
}

// Builtin returns the registry of sources this build knows about.
func Builtin() *Registry {
	return newRegistry([]models.CommentarySource{
		{
			ID:            "en-tafsir-ibn-kathir",
			Name:          "Tafsir Ibn Kathir",
			SecondaryName: "تفسير ابن كثير",
			Language:      "en",
			Kind:          models.KindCommentary,
			RemotePath:    "en-tafsir-ibn-kathir.zip",
		},
		{
			ID:            "ar-tafsir-jalalayn",
			Name:          "Tafsir al-Jalalayn",
			SecondaryName: "تفسير الجلالين",
			Language:      "ar",
			Kind:          models.KindCommentary,
			RemotePath:    "ar-tafsir-jalalayn.zip",
		},
		{
			ID:            "ar-tafsir-muyassar",
			Name:          "Tafsir al-Muyassar",
			SecondaryName: "التفسير الميسر",
			Language:      "ar",
			Kind:          models.KindCommentary,
			RemotePath:    "ar-tafsir-muyassar.zip",
		},
		{
			ID:            "en-word-by-word",
			Name:          "Word by Word Meaning",
			SecondaryName: "معاني الكلمات",
			Language:      "en",
			Kind:          models.KindWordByWord,
			AssetName:     "en-word-meanings.json",
		},
		{
			ID:            "ar-irab-al-quran",
			Name:          "I'rab al-Quran",
			SecondaryName: "إعراب القرآن",
			Language:      "ar",
			Kind:          models.KindGrammar,
			RemotePath:    "ar-irab-al-quran.zip",
		},
	})
}

// LoadFile reads a YAML list of sources from path, replacing the built-ins.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}
	var list []models.CommentarySource
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}
	for _, s := range list {
		if s.ID == "" {
			return nil, fmt.Errorf("source with empty id in %s", path)
		}
		if s.RemotePath == "" && s.AssetName == "" {
			return nil, fmt.Errorf("source %q has neither remote_path nor asset_name", s.ID)
		}
	}
	return newRegistry(list), nil
}

// FromList builds a registry from an explicit source list. Duplicate ids
// keep their first occurrence.
func FromList(list []models.CommentarySource) *Registry {
	return newRegistry(list)
}

func newRegistry(list []models.CommentarySource) *Registry {
	r := &Registry{byID: make(map[string]models.CommentarySource, len(list))}
	for _, s := range list {
		if _, dup := r.byID[s.ID]; dup {
			continue
		}
		r.order = append(r.order, s.ID)
		r.byID[s.ID] = s
	}
	return r
}

// Get returns the source with the given id.
func (r *Registry) Get(id string) (models.CommentarySource, bool) {
	s, ok := r.byID[id]
	return s, ok
}

// All returns the sources in registration order.
func (r *Registry) All() []models.CommentarySource {
	out := make([]models.CommentarySource, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}
