package identify

import (
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/bookscan/internal/models"
)

// Field names an editable record field
type Field string

const (
	FieldTitle       Field = "title"
	FieldAuthor      Field = "author"
	FieldPublisher   Field = "publisher"
	FieldPublishDate Field = "publishDate"
	FieldPrice       Field = "price"
	FieldISBN        Field = "isbn"
	FieldDescription Field = "description"
	FieldCover       Field = "cover"
)

// Fields lists every editable field in display order
var Fields = []Field{
	FieldTitle, FieldAuthor, FieldPublisher, FieldPublishDate,
	FieldPrice, FieldISBN, FieldDescription, FieldCover,
}

// ParseField validates a field name
func ParseField(name string) (Field, error) {
	for _, f := range Fields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown field %q", name)
}

// Form holds the record being edited and remembers which fields the user
// typed themselves.
type Form struct {
	values models.BookMetadata
	edited map[Field]bool
}

func newForm() *Form {
	return &Form{edited: make(map[Field]bool)}
}

// Values returns the current field values
func (f Form) Values() models.BookMetadata {
	return f.values
}

// Get returns the value of field
func (f Form) Get(field Field) string {
	return *slot(&f.values, field)
}

// Edited reports whether the user changed field by hand
func (f Form) Edited(field Field) bool {
	return f.edited[field]
}

// EditedFields lists the fields changed by hand, in display order
func (f Form) EditedFields() []Field {
	edited := []Field{}
	for _, field := range Fields {
		if f.edited[field] {
			edited = append(edited, field)
		}
	}
	return edited
}

func (f *Form) set(field Field, value string) {
	*slot(&f.values, field) = value
	f.edited[field] = true
}

// merge copies the non-blank values of md into the form. User edits are kept
// unless overwrite is set, in which case merged fields stop counting as
// edited. It returns the fields that changed.
func (f *Form) merge(md models.BookMetadata, overwrite bool) []Field {
	var changed []Field
	for _, field := range Fields {
		v := strings.TrimSpace(*slot(&md, field))
		if v == "" {
			continue
		}
		if f.edited[field] && !overwrite {
			continue
		}
		dst := slot(&f.values, field)
		if *dst != v {
			*dst = v
			changed = append(changed, field)
		}
		f.edited[field] = false
	}
	return changed
}

func (f *Form) clone() Form {
	c := Form{values: f.values, edited: make(map[Field]bool, len(f.edited))}
	for k, v := range f.edited {
		c.edited[k] = v
	}
	return c
}

func slot(md *models.BookMetadata, field Field) *string {
	switch field {
	case FieldTitle:
		return &md.Title
	case FieldAuthor:
		return &md.Author
	case FieldPublisher:
		return &md.Publisher
	case FieldPublishDate:
		return &md.PublishDate
	case FieldPrice:
		return &md.Price
	case FieldISBN:
		return &md.ISBN
	case FieldDescription:
		return &md.Description
	case FieldCover:
		return &md.Cover
	}
	panic("identify: unknown field " + string(field))
}
