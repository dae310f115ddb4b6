package handler

import (
	"reflect"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// NewValidator returns a validator that understands decimal.Decimal fields
// through the decimal_gt, decimal_gte, decimal_lte and decimal_places tags.
func NewValidator() *validator.Validate {
	v := validator.New()

	// Decimals are validated as their string form; struct-kind fields would
	// otherwise be descended into instead of checked.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("decimal_gt", decimalCompare(func(field, param decimal.Decimal) bool { return field.GreaterThan(param) }))
	_ = v.RegisterValidation("decimal_gte", decimalCompare(func(field, param decimal.Decimal) bool { return field.GreaterThanOrEqual(param) }))
	_ = v.RegisterValidation("decimal_lte", decimalCompare(func(field, param decimal.Decimal) bool { return field.LessThanOrEqual(param) }))

	_ = v.RegisterValidation("decimal_places", decimalPlaces)

	return v
}

// decimalPlaces accepts values with at most param digits after the point.
func decimalPlaces(fl validator.FieldLevel) bool {
	field, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	places, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return field.Equal(field.Truncate(int32(places)))
}

func decimalCompare(cmp func(field, param decimal.Decimal) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		field, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		param, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		return cmp(field, param)
	}
}
