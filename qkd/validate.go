package qkd

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their configuration keys, e.g. "channel.depolarization".
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks c before any simulation work is done. Every failure wraps
// ErrInvalidParameter.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		var msg string
		switch fe.Tag() {
		case "oneof":
			msg = fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
		case "gt", "gte", "lt", "lte":
			msg = fmt.Sprintf("%s must be %s %s, got %v", field, comparisons[fe.Tag()], fe.Param(), fe.Value())
		default:
			msg = fmt.Sprintf("%s failed %q", field, fe.Tag())
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("%w: %s", ErrInvalidParameter, strings.Join(msgs, "; "))
}

var comparisons = map[string]string{"gt": ">", "gte": ">=", "lt": "<", "lte": "<="}
