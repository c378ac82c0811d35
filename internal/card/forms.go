package card

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/grocery-field/card/internal/domain"
)

// ErrInvalidForm wraps validation failures of user input.
var ErrInvalidForm = errors.New("card: invalid form")

// Units offered when confirming a scan.
var ScanUnits = []string{"st", "förpackning", "g", "kg", "dl", "l"}

// ManualUnits extends ScanUnits with bag and jar.
var ManualUnits = append(append([]string(nil), ScanUnits...), "påse", "burk")

// Categories offered by the manual form.
var Categories = []string{
	"mejeri", "kött & fisk", "grönsaker", "frukt", "bröd & spannmål",
	"konserver", "frys", "dryck", "kryddor & såser", "övrigt",
}

// ConfirmForm is submitted from the Confirm view.
type ConfirmForm struct {
	Name       string `json:"name" validate:"max=120"`
	Quantity   int    `json:"quantity" validate:"min=1,max=99"`
	Unit       string `json:"unit" validate:"omitempty,scanunit"`
	ExpiryDate string `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	Location   string `json:"location" validate:"omitempty,location"`
}

// ManualForm adds an item without scanning.
type ManualForm struct {
	Name        string `json:"name" validate:"required,max=120"`
	Quantity    int    `json:"quantity" validate:"min=1,max=999"`
	Unit        string `json:"unit" validate:"omitempty,manualunit"`
	Category    string `json:"category" validate:"omitempty,category"`
	ExpiryDate  string `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	Barcode     string `json:"barcode" validate:"omitempty,max=64,printascii"`
	Location    string `json:"location" validate:"omitempty,location"`
	MinQuantity int    `json:"min_quantity" validate:"min=0,max=99"`
}

// ExpiryForm sets or clears an item's best-before date.
type ExpiryForm struct {
	ExpiryDate string `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
}

// FieldError names one rejected field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// FormError lists the rejected fields of a form.
type FormError struct {
	Fields []FieldError
}

func (e *FormError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidForm, strings.Join(names, ", "))
}

func (e *FormError) Unwrap() error { return ErrInvalidForm }

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("scanunit", oneOf(ScanUnits))
	_ = v.RegisterValidation("manualunit", oneOf(ManualUnits))
	_ = v.RegisterValidation("category", oneOf(Categories))
	_ = v.RegisterValidation("location", func(fl validator.FieldLevel) bool {
		_, ok := domain.ParseLocation(fl.Field().String())
		return ok
	})
	return v
}

func oneOf(values []string) validator.Func {
	allowed := make(map[string]bool, len(values))
	for _, v := range values {
		allowed[v] = true
	}
	return func(fl validator.FieldLevel) bool {
		return allowed[fl.Field().String()]
	}
}

func validateForm(v *validator.Validate, form any) error {
	err := v.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}
	out := &FormError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out
}

func (f *ConfirmForm) normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Unit = strings.TrimSpace(f.Unit)
	f.ExpiryDate = strings.TrimSpace(f.ExpiryDate)
	f.Location = strings.TrimSpace(f.Location)
	if f.Quantity == 0 {
		f.Quantity = 1
	}
}

func (f *ManualForm) normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Unit = strings.TrimSpace(f.Unit)
	f.Category = strings.TrimSpace(f.Category)
	f.ExpiryDate = strings.TrimSpace(f.ExpiryDate)
	f.Barcode = strings.TrimSpace(f.Barcode)
	f.Location = strings.TrimSpace(f.Location)
	if f.Quantity == 0 {
		f.Quantity = 1
	}
	if f.Unit == "" {
		f.Unit = "st"
	}
}

// expiryValue returns nil for an empty date so the host clears the field.
func expiryValue(raw string) any {
	if raw == "" {
		return nil
	}
	return raw
}

// locationCode maps a form location to the host's wire code, falling back to def.
func locationCode(raw string, def domain.Location) string {
	if loc, ok := domain.ParseLocation(raw); ok && loc != domain.LocationUnset {
		return loc.Code()
	}
	return def.Code()
}
