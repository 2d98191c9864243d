package element

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/djarekg/tampa-taffy/internal/errors"
)

// decodeAttribute converts a raw attribute into T according to k.
// Boolean is presence-based. Other kinds fall back to def when the attribute
// is absent.
func decodeAttribute[T any](k Kind, raw string, present bool, def T) (T, error) {
	var out T
	rv := reflect.ValueOf(&out).Elem()

	if k == Boolean {
		switch rv.Kind() {
		case reflect.Bool:
			rv.SetBool(present)
		case reflect.Interface:
			if !assign(rv, present) {
				return def, convertError(k, rv.Type(), nil)
			}
		default:
			return def, convertError(k, rv.Type(), nil)
		}
		return out, nil
	}

	if !present {
		return def, nil
	}

	switch k {
	case Number:
		s := strings.TrimSpace(raw)
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n, err := strconv.ParseInt(s, 10, rv.Type().Bits())
			if err != nil {
				return def, convertError(k, rv.Type(), err)
			}
			rv.SetInt(n)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			n, err := strconv.ParseUint(s, 10, rv.Type().Bits())
			if err != nil {
				return def, convertError(k, rv.Type(), err)
			}
			rv.SetUint(n)
		case reflect.Float32, reflect.Float64:
			n, err := strconv.ParseFloat(s, rv.Type().Bits())
			if err != nil {
				return def, convertError(k, rv.Type(), err)
			}
			rv.SetFloat(n)
		case reflect.Interface:
			n, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return def, convertError(k, rv.Type(), err)
			}
			if !assign(rv, n) {
				return def, convertError(k, rv.Type(), nil)
			}
		default:
			return def, convertError(k, rv.Type(), nil)
		}
	case Object, Array:
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return def, convertError(k, rv.Type(), err)
		}
	default:
		switch rv.Kind() {
		case reflect.String:
			rv.SetString(raw)
		case reflect.Interface:
			if !assign(rv, raw) {
				return def, convertError(k, rv.Type(), nil)
			}
		default:
			return def, convertError(k, rv.Type(), nil)
		}
	}
	return out, nil
}

// encodeAttribute converts v into its attribute form. present is false when
// the attribute should be removed.
func encodeAttribute[T any](k Kind, v T) (raw string, present bool, err error) {
	rv := reflect.ValueOf(&v).Elem()
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return "", false, nil
		}
		rv = rv.Elem()
	}

	switch k {
	case Boolean:
		if rv.Kind() != reflect.Bool {
			return "", false, convertError(k, rv.Type(), nil)
		}
		return "", rv.Bool(), nil
	case Number:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return strconv.FormatInt(rv.Int(), 10), true, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return strconv.FormatUint(rv.Uint(), 10), true, nil
		case reflect.Float32, reflect.Float64:
			return strconv.FormatFloat(rv.Float(), 'g', -1, rv.Type().Bits()), true, nil
		default:
			return "", false, convertError(k, rv.Type(), nil)
		}
	case Object, Array:
		switch rv.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice:
			if rv.IsNil() {
				return "", false, nil
			}
		}
		b, err := json.Marshal(rv.Interface())
		if err != nil {
			return "", false, convertError(k, rv.Type(), err)
		}
		return string(b), true, nil
	default:
		if rv.Kind() == reflect.String {
			return rv.String(), true, nil
		}
		return fmt.Sprint(rv.Interface()), true, nil
	}
}

// assign stores x in the interface value rv when its type allows it.
func assign(rv reflect.Value, x any) bool {
	xv := reflect.ValueOf(x)
	if !xv.Type().AssignableTo(rv.Type()) {
		return false
	}
	rv.Set(xv)
	return true
}

func convertError(k Kind, t reflect.Type, cause error) error {
	err := errors.New(errors.CodeAttributeConvert).
		WithDetailf("cannot convert %s attribute to %s", k, t)
	if cause != nil {
		err = err.Wrap(cause)
	}
	return err
}
