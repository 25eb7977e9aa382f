package resource

import "strconv"

// Field names an addressable record field.
type Field string

const (
	FieldTitle    Field = "title"
	FieldCode     Field = "code"
	FieldProvider Field = "provider"
	FieldCategory Field = "category"
	FieldStatus   Field = "status"
	FieldYear     Field = "year"

	FieldRequirements Field = "requirements"
	FieldBenefits     Field = "benefits"
	FieldEligibility  Field = "eligibility"

	FieldVerified Field = "verified"
	FieldFeatured Field = "featured"

	FieldFile  Field = "file"
	FieldImage Field = "image"
)

// FileConstraint limits what may be uploaded into a file field.
type FileConstraint struct {
	Types    []string
	MaxBytes int64
}

// Schema parameterizes the engine for one resource type: which fields are
// searched, filtered on and required, which child collections a draft carries,
// and the upload constraints per file field. Concrete types supply only a
// schema, never their own copy of filter/paginate/bulk logic.
type Schema struct {
	Type       Type
	Label      string
	Searchable []Field
	Filterable []Field
	Required   []Field
	ChildSlots []Slot
	FileFields map[Field]FileConstraint
}

// FieldValue returns a record's string value for a searchable or filterable
// field. Zero year reads as "" so it never matches a filter and never trips
// the unconstrained sentinel.
func FieldValue(r Record, f Field) string {
	switch f {
	case FieldTitle:
		return r.Title
	case FieldCode:
		return r.Code
	case FieldProvider:
		return r.Provider
	case FieldCategory:
		return r.Category
	case FieldStatus:
		return r.Status
	case FieldYear:
		if r.Year == 0 {
			return ""
		}
		return strconv.Itoa(r.Year)
	}
	return ""
}

func (s Schema) Filters(f Field) bool {
	for _, g := range s.Filterable {
		if g == f {
			return true
		}
	}
	return false
}

func (s Schema) HasSlot(slot Slot) bool {
	for _, sl := range s.ChildSlots {
		if sl == slot {
			return true
		}
	}
	return false
}

const (
	maxDocumentBytes = 50 << 20
	maxImageBytes    = 5 << 20
)

var pdfOnly = FileConstraint{Types: []string{"application/pdf"}, MaxBytes: maxDocumentBytes}
var imageOnly = FileConstraint{Types: []string{"image/jpeg", "image/png", "image/webp"}, MaxBytes: maxImageBytes}

// Schemas returns the four manager schemas served by the back office.
func Schemas() []Schema {
	return []Schema{
		{
			Type:       TypePastQuestions,
			Label:      "Past Questions",
			Searchable: []Field{FieldTitle, FieldCode, FieldProvider},
			Filterable: []Field{FieldCategory, FieldYear, FieldStatus},
			Required:   []Field{FieldTitle, FieldCode, FieldYear},
			FileFields: map[Field]FileConstraint{FieldFile: pdfOnly, FieldImage: imageOnly},
		},
		{
			Type:       TypeScholarships,
			Label:      "Scholarships",
			Searchable: []Field{FieldTitle, FieldProvider},
			Filterable: []Field{FieldCategory, FieldStatus},
			Required:   []Field{FieldTitle, FieldProvider},
			ChildSlots: []Slot{SlotFAQ},
			FileFields: map[Field]FileConstraint{FieldImage: imageOnly},
		},
		{
			Type:       TypeSHSQuestions,
			Label:      "SHS / BECE Questions",
			Searchable: []Field{FieldTitle, FieldCode},
			Filterable: []Field{FieldCategory, FieldYear},
			Required:   []Field{FieldTitle, FieldCategory},
			FileFields: map[Field]FileConstraint{FieldFile: pdfOnly},
		},
		{
			Type:       TypeTrialQuestions,
			Label:      "Trial Questions",
			Searchable: []Field{FieldTitle, FieldCode, FieldProvider},
			Filterable: []Field{FieldCategory, FieldYear, FieldStatus},
			Required:   []Field{FieldTitle, FieldCategory},
			ChildSlots: []Slot{SlotQuiz, SlotDocuments},
			FileFields: map[Field]FileConstraint{FieldFile: pdfOnly, FieldImage: imageOnly},
		},
	}
}

// SchemaFor looks a schema up by resource type.
func SchemaFor(t Type) (Schema, bool) {
	for _, s := range Schemas() {
		if s.Type == t {
			return s, true
		}
	}
	return Schema{}, false
}
