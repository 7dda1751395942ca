package cli

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/oscarka/underwritingsystem2/internal/component"
	"github.com/oscarka/underwritingsystem2/internal/events"
	"github.com/oscarka/underwritingsystem2/pkg/types"
)

type recordForm interface {
	SetRecord(types.Record) error
	Validate() component.FieldErrors
	Destroy()
}

func newForm[T any](bus *events.Bus, log *zerolog.Logger) recordForm {
	return component.NewForm[T](bus, component.FormOptions{Logger: log})
}

// entityForms binds each resource to the entity type whose validate tags
// its payloads must satisfy.
var entityForms = map[string]func(*events.Bus, *zerolog.Logger) recordForm{
	"rules":         newForm[types.Rule],
	"ai-parameters": newForm[types.AIParameter],
	"channels":      newForm[types.Channel],
	"companies":     newForm[types.Company],
	"products":      newForm[types.Product],
}

// formFields are the record keys the entity types validate.
var formFields = []string{"name", "code", "status"}

// checkRecord fills the resource's form from rec and validates it. Only the
// validated keys are copied, as text, so loosely typed --set values and
// nested back-end fields never fail the decode.
func (a *App) checkRecord(resource string, rec types.Record) error {
	mk, ok := entityForms[resource]
	if !ok {
		return nil
	}
	f := mk(a.Bus, &a.Log)
	defer f.Destroy()

	in := types.Record{}
	for _, k := range formFields {
		switch v := rec[k].(type) {
		case nil:
		case string:
			in[k] = v
		default:
			in[k] = fmt.Sprint(v)
		}
	}
	if err := f.SetRecord(in); err != nil {
		return fmt.Errorf("%s: %w", resource, err)
	}
	if errs := f.Validate(); len(errs) > 0 {
		return errs
	}
	return nil
}
