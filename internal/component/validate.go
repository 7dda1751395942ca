package component

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate = newValidator()

	patternsMu sync.Mutex
	patterns   = map[string]*regexp.Regexp{}
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	// regex=<expr> matches the whole string value
	_ = v.RegisterValidation("regex", func(fl validator.FieldLevel) bool {
		re, err := pattern(fl.Param())
		if err != nil {
			return false
		}
		return re.MatchString(fl.Field().String())
	})
	return v
}

func pattern(expr string) (*regexp.Regexp, error) {
	patternsMu.Lock()
	defer patternsMu.Unlock()
	if re, ok := patterns[expr]; ok {
		return re, nil
	}
	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return nil, err
	}
	patterns[expr] = re
	return re, nil
}

// FieldErrors maps a JSON field name to its first failing rule's message.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for f, m := range e {
		parts = append(parts, f+": "+m)
	}
	return strings.Join(parts, "; ")
}

// ValidateStruct runs the struct's validate tags and returns nil when v is valid.
func ValidateStruct(v any) FieldErrors {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return FieldErrors{"": err.Error()}
	}
	out := FieldErrors{}
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; !seen {
			out[fe.Field()] = message(fe)
		}
	}
	return out
}

func message(fe validator.FieldError) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", f)
	case "min":
		return fmt.Sprintf("%s must be at least %s", f, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", f, fe.Param())
	case "len":
		return fmt.Sprintf("%s must have length %s", f, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", f)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", f, fe.Param())
	case "regex":
		return fmt.Sprintf("%s has an invalid format", f)
	}
	return fmt.Sprintf("%s failed %s validation", f, fe.Tag())
}
