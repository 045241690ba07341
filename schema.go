package authcenter

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
)

type loginRequest struct {
	UserName *string `json:"userName" validate:"required"`
	Password *string `json:"password" validate:"required"`
}

type checkTokenRequest struct {
	Token *string `json:"token" validate:"required"`
}

var schemaValidator = newSchemaValidator()

func newSchemaValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeMessage fills out from msg. Values must already have the declared
// type: numbers are not coerced to strings. Unknown keys are ignored. A key
// that is present with an empty string passes; a missing or nil key fails.
func decodeMessage(msg map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: false,
		ErrorUnused:      false,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if msg == nil {
		msg = map[string]any{}
	}
	if err := dec.Decode(msg); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	if err := schemaValidator.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" "+fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrSchemaInvalid, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	return nil
}
