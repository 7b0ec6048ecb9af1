package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/IgorGrieder/shortlink-analytics/internal/processing/links"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// stringRule lifts a string predicate into a validator func. Non-string
// fields always fail.
func stringRule(ok func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return fl.Field().Kind() == reflect.String && ok(fl.Field().String())
	}
}

var timeType = reflect.TypeOf(time.Time{})

// inFuture passes nil pointers so optional expiries can omit the field.
func inFuture(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() == reflect.Pointer {
		if field.IsNil() {
			return true
		}
		field = field.Elem()
	}
	if field.Type() != timeType {
		return false
	}
	return field.Interface().(time.Time).After(time.Now())
}

var rules = map[string]validator.Func{
	"notblank": stringRule(func(s string) bool { return strings.TrimSpace(s) != "" }),
	"http_url": stringRule(func(s string) bool {
		_, err := links.NormalizeURL(s)
		return err == nil
	}),
	"shortcode": stringRule(links.IsValidCode),
	"future":    inFuture,
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

// Get returns the shared validator with the custom tags registered.
func Get() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
		for tag, fn := range rules {
			if err := validate.RegisterValidation(tag, fn); err != nil {
				panic("validation: register " + tag + ": " + err.Error())
			}
		}
	})
	return validate
}

func Validate(s any) error {
	return Get().Struct(s)
}

// FirstFieldError returns the json name and tag of the first failed field,
// or empty strings when err is not a validation error.
func FirstFieldError(err error) (field, tag string) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "", ""
	}
	return verrs[0].Field(), verrs[0].Tag()
}
