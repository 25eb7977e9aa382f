package resource

import (
	"fmt"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/studyhub-gh/backoffice/internal/apperr"
)

// Draft is the mutable, uncommitted projection of a record (or a new record),
// owned by the active edit session. Array-valued free-text fields are edited
// item-by-item, and each child slot carries its own sub-collection that is
// persisted transactionally with the parent on commit.
type Draft struct {
	Record   Record                 `json:"record"`
	Children map[Slot][]ChildRecord `json:"children,omitempty"`
}

// NewDraft returns an empty draft for creating a record of the schema's type.
func NewDraft(s Schema) *Draft {
	d := &Draft{Record: Record{Type: s.Type}, Children: map[Slot][]ChildRecord{}}
	for _, slot := range s.ChildSlots {
		d.Children[slot] = []ChildRecord{}
	}
	return d
}

// DraftOf returns a draft seeded with a deep copy of r.
func DraftOf(r Record, s Schema) *Draft {
	d := NewDraft(s)
	d.Record = r.Clone()
	return d
}

// SetField assigns a scalar field from its string form.
func (d *Draft) SetField(f Field, v string) error {
	switch f {
	case FieldTitle:
		d.Record.Title = v
	case FieldCode:
		d.Record.Code = v
	case FieldProvider:
		d.Record.Provider = v
	case FieldCategory:
		d.Record.Category = v
	case FieldStatus:
		d.Record.Status = v
	case FieldYear:
		if v == "" {
			d.Record.Year = 0
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("year: %w", err)
		}
		d.Record.Year = n
	default:
		return apperr.ErrUnknownField
	}
	return nil
}

// SetFlag assigns a boolean field.
func (d *Draft) SetFlag(f Field, v bool) error {
	switch f {
	case FieldVerified:
		d.Record.Verified = v
	case FieldFeatured:
		d.Record.Featured = v
	default:
		return apperr.ErrUnknownField
	}
	return nil
}

// SetFile assigns an uploaded file reference to a file field.
func (d *Draft) SetFile(f Field, ref *FileRef) error {
	switch f {
	case FieldFile:
		d.Record.File = ref
	case FieldImage:
		d.Record.Image = ref
	default:
		return apperr.ErrUnknownField
	}
	return nil
}

func (d *Draft) listPtr(f Field) *[]string {
	switch f {
	case FieldRequirements:
		return &d.Record.Requirements
	case FieldBenefits:
		return &d.Record.Benefits
	case FieldEligibility:
		return &d.Record.Eligibility
	}
	return nil
}

// AppendItem adds one item to an array-valued free-text field.
func (d *Draft) AppendItem(f Field, v string) error {
	p := d.listPtr(f)
	if p == nil {
		return apperr.ErrUnknownField
	}
	*p = append(*p, v)
	return nil
}

// ReplaceItem overwrites the item at index i.
func (d *Draft) ReplaceItem(f Field, i int, v string) error {
	p := d.listPtr(f)
	if p == nil {
		return apperr.ErrUnknownField
	}
	if i < 0 || i >= len(*p) {
		return fmt.Errorf("%s: index %d out of range", f, i)
	}
	(*p)[i] = v
	return nil
}

// RemoveItem deletes the item at index i, preserving order.
func (d *Draft) RemoveItem(f Field, i int) error {
	p := d.listPtr(f)
	if p == nil {
		return apperr.ErrUnknownField
	}
	if i < 0 || i >= len(*p) {
		return fmt.Errorf("%s: index %d out of range", f, i)
	}
	*p = append((*p)[:i], (*p)[i+1:]...)
	return nil
}

// AddChild appends a child record to a slot.
func (d *Draft) AddChild(slot Slot, c ChildRecord) error {
	if _, ok := d.Children[slot]; !ok {
		return apperr.ErrUnknownField
	}
	d.Children[slot] = append(d.Children[slot], c)
	return nil
}

// ReplaceChild overwrites the child at index i in a slot.
func (d *Draft) ReplaceChild(slot Slot, i int, c ChildRecord) error {
	kids, ok := d.Children[slot]
	if !ok {
		return apperr.ErrUnknownField
	}
	if i < 0 || i >= len(kids) {
		return fmt.Errorf("%s: index %d out of range", slot, i)
	}
	kids[i] = c
	return nil
}

// RemoveChild deletes the child at index i from a slot.
func (d *Draft) RemoveChild(slot Slot, i int) error {
	kids, ok := d.Children[slot]
	if !ok {
		return apperr.ErrUnknownField
	}
	if i < 0 || i >= len(kids) {
		return fmt.Errorf("%s: index %d out of range", slot, i)
	}
	d.Children[slot] = append(kids[:i], kids[i+1:]...)
	return nil
}

// Validate checks the schema's required fields and aggregates every missing
// one into a single error. A failed validation makes no repository call.
func (d *Draft) Validate(s Schema) error {
	errs := validation.Errors{}
	for _, f := range s.Required {
		errs[string(f)] = validation.Validate(strings.TrimSpace(FieldValue(d.Record, f)), validation.Required)
	}
	return errs.Filter()
}
