package component

import (
	"encoding/json"
	"net/url"
	"sync"

	"github.com/go-playground/form"
	"github.com/rs/zerolog"

	"github.com/oscarka/underwritingsystem2/internal/events"
	"github.com/oscarka/underwritingsystem2/pkg/types"
)

// FormOptions configure a Form.
type FormOptions struct {
	// SkipValidation submits without running the validate tags.
	SkipValidation bool
	ResetOnSubmit  bool
	Logger         *zerolog.Logger
}

// Form holds the values of an edit form bound to T's validate and json tags.
type Form[T any] struct {
	Base
	opts FormOptions
	enc  *form.Encoder
	dec  *form.Decoder

	mu       sync.Mutex
	data     T
	errs     FieldErrors
	disabled bool
}

// NewForm creates a form that fills itself on ModalOpen and resets on ModalClose.
func NewForm[T any](bus *events.Bus, opts FormOptions) *Form[T] {
	f := &Form[T]{
		Base: newBase(bus, opts.Logger, "form"),
		opts: opts,
		enc:  form.NewEncoder(),
		dec:  form.NewDecoder(),
	}
	f.enc.SetTagName("json")
	f.dec.SetTagName("json")
	f.track(
		events.Listen(bus, func(e events.ModalOpen) {
			f.Reset()
			if e.Data != nil {
				if err := f.SetRecord(e.Data); err != nil {
					f.log.Warn().Err(err).Msg("fill form")
				}
			}
			if e.Mode == events.ModeView {
				f.Disable()
			} else {
				f.Enable()
			}
		}),
		events.Listen(bus, func(events.ModalClose) {
			f.Reset()
			f.Enable()
		}),
	)
	return f
}

func (f *Form[T]) Data() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data
}

func (f *Form[T]) SetData(v T) {
	f.mu.Lock()
	f.data = v
	f.mu.Unlock()
}

// SetRecord fills the form from an untyped record. Unknown keys are ignored.
func (f *Form[T]) SetRecord(r types.Record) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return json.Unmarshal(b, &f.data)
}

// Record returns the form data as an untyped record.
func (f *Form[T]) Record() (types.Record, error) {
	return types.ToRecord(f.Data())
}

// Validate runs the validate tags and remembers the errors.
func (f *Form[T]) Validate() FieldErrors {
	errs := ValidateStruct(f.Data())
	f.mu.Lock()
	f.errs = errs
	f.mu.Unlock()
	return errs
}

// Errors returns the result of the last validation.
func (f *Form[T]) Errors() FieldErrors {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs
}

// Serialize encodes the form as a URL query string.
func (f *Form[T]) Serialize() (string, error) {
	d := f.Data()
	v, err := f.enc.Encode(&d)
	if err != nil {
		return "", err
	}
	return v.Encode(), nil
}

// Deserialize sets the fields present in the query string s.
func (f *Form[T]) Deserialize(s string) error {
	v, err := url.ParseQuery(s)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dec.Decode(&f.data, v)
}

// Reset clears values and errors.
func (f *Form[T]) Reset() {
	var zero T
	f.mu.Lock()
	f.data = zero
	f.errs = nil
	f.mu.Unlock()
}

func (f *Form[T]) Disable() { f.setDisabled(true) }
func (f *Form[T]) Enable()  { f.setDisabled(false) }

func (f *Form[T]) setDisabled(v bool) {
	f.mu.Lock()
	f.disabled = v
	f.mu.Unlock()
}

func (f *Form[T]) Disabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disabled
}

// Submit validates and emits FormSubmit. It reports whether the event was sent.
func (f *Form[T]) Submit() bool {
	if f.Disabled() {
		return false
	}
	if !f.opts.SkipValidation && len(f.Validate()) > 0 {
		f.log.Debug().Str("errors", f.Errors().Error()).Msg("form invalid")
		return false
	}
	rec, err := f.Record()
	if err != nil {
		f.log.Error().Err(err).Msg("encode form")
		return false
	}
	f.emit(events.FormSubmit{Data: rec})
	if f.opts.ResetOnSubmit {
		f.Reset()
	}
	return true
}
