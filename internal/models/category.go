package models

import "strings"

// Category is the canonical entity category of an annotation.
type Category string

const (
	CategoryGene     Category = "gene"
	CategorySpecies  Category = "species"
	CategoryStrain   Category = "strain"
	CategoryGenus    Category = "genus"
	CategoryDisease  Category = "disease"
	CategoryChemical Category = "chemical"
	CategoryVariant  Category = "variant"
	CategoryCellLine Category = "cell_line"
	CategoryOther    Category = "other"
)

// CategoryOrder is the fixed display order used for enrichment and payloads.
var CategoryOrder = []Category{
	CategoryGene,
	CategorySpecies,
	CategoryDisease,
	CategoryChemical,
	CategoryCellLine,
	CategoryStrain,
	CategoryGenus,
	CategoryVariant,
	CategoryOther,
}

var categoryAliases = map[string]Category{
	"gene":            CategoryGene,
	"genes":           CategoryGene,
	"species":         CategorySpecies,
	"strain":          CategoryStrain,
	"strains":         CategoryStrain,
	"genus":           CategoryGenus,
	"disease":         CategoryDisease,
	"diseases":        CategoryDisease,
	"chemical":        CategoryChemical,
	"chemicals":       CategoryChemical,
	"variant":         CategoryVariant,
	"variants":        CategoryVariant,
	"dnamutation":     CategoryVariant,
	"proteinmutation": CategoryVariant,
	"snp":             CategoryVariant,
	"mutation":        CategoryVariant,
	"cellline":        CategoryCellLine,
	"cell_line":       CategoryCellLine,
	"cell line":       CategoryCellLine,
	"celllines":       CategoryCellLine,
	"cell_lines":      CategoryCellLine,
}

// ParseCategory maps BioC/NER type names (e.g. "Gene", "CellLine", "DNAMutation")
// to a canonical category. Unknown names map to CategoryOther.
func ParseCategory(s string) Category {
	key := strings.ToLower(strings.TrimSpace(s))
	if c, ok := categoryAliases[key]; ok {
		return c
	}
	if c, ok := categoryAliases[strings.ReplaceAll(key, "-", "")]; ok {
		return c
	}
	return CategoryOther
}

// Label is the human-readable plural used in enriched text.
func (c Category) Label() string {
	switch c {
	case CategoryGene:
		return "Genes"
	case CategorySpecies:
		return "Species"
	case CategoryStrain:
		return "Strains"
	case CategoryGenus:
		return "Genera"
	case CategoryDisease:
		return "Diseases"
	case CategoryChemical:
		return "Chemicals"
	case CategoryVariant:
		return "Variants"
	case CategoryCellLine:
		return "Cell lines"
	default:
		return "Other"
	}
}

// FieldName is the payload/filter field holding the category's entities (e.g. "genes").
func (c Category) FieldName() string {
	switch c {
	case CategorySpecies:
		return "species"
	case CategoryGenus:
		return "genera"
	case CategoryOther:
		return "other_entities"
	default:
		return string(c) + "s"
	}
}

// CategoryForField is the inverse of FieldName.
func CategoryForField(field string) (Category, bool) {
	for _, c := range CategoryOrder {
		if c.FieldName() == field {
			return c, true
		}
	}
	return "", false
}
