package customvalidator

import (
	"reflect"

	"github.com/aarondl/null/v8"
	"github.com/go-playground/validator/v10"

	"safety-inspection/internal/entities"
)

// RegisterCustomValidations installs the domain rules and teaches v to look inside null.* types.
func RegisterCustomValidations(v *validator.Validate) error {
	registerNullTypes(v)

	if err := v.RegisterValidation("severity", isSeverity); err != nil {
		return err
	}
	if err := v.RegisterValidation("finding_status", isFindingStatus); err != nil {
		return err
	}
	if err := v.RegisterValidation("user_role", isUserRole); err != nil {
		return err
	}
	if err := v.RegisterValidation("department", isDepartment); err != nil {
		return err
	}
	return nil
}

// CustomValidator adapts validator.Validate to echo.Validator.
type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator(v *validator.Validate) *CustomValidator {
	return &CustomValidator{validator: v}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// New builds a validator with every custom rule registered.
func New() (*CustomValidator, error) {
	v := validator.New()
	if err := RegisterCustomValidations(v); err != nil {
		return nil, err
	}
	return NewValidator(v), nil
}

func isSeverity(fl validator.FieldLevel) bool {
	_, err := entities.ParseSeverity(fl.Field().String())
	return err == nil
}

func isFindingStatus(fl validator.FieldLevel) bool {
	_, err := entities.ParseStatus(fl.Field().String())
	return err == nil
}

func isUserRole(fl validator.FieldLevel) bool {
	_, err := entities.ParseRole(fl.Field().String())
	return err == nil
}

func isDepartment(fl validator.FieldLevel) bool {
	return entities.IsKnownDepartment(fl.Field().String())
}

func registerNullTypes(v *validator.Validate) {
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if val, ok := field.Interface().(null.String); ok && val.Valid {
			return val.String
		}
		return nil
	}, null.String{})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if val, ok := field.Interface().(null.Int); ok && val.Valid {
			return val.Int
		}
		return nil
	}, null.Int{})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if val, ok := field.Interface().(null.Bool); ok && val.Valid {
			return val.Bool
		}
		return nil
	}, null.Bool{})

	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if val, ok := field.Interface().(null.Time); ok && val.Valid {
			return val.Time
		}
		return nil
	}, null.Time{})
}
