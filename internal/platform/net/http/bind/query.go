package bind

import (
	"net/http"
	"reflect"
	"strconv"
	"strings"

	perr "webgap/internal/platform/errors"
)

// ParseQuery binds URL query parameters into T by `query` struct tag, then
// validates the result with the singleton validator. Supported field kinds:
// string, int, int64, float64, bool. Missing params leave the zero value in
// place so callers can apply defaults before use.
func ParseQuery[T any](r *http.Request) (T, error) {
	var dst T
	rv := reflect.ValueOf(&dst).Elem()
	rt := rv.Type()
	if rt.Kind() != reflect.Struct {
		return dst, perr.Newf(perr.ErrorCodeInvalidArgument, "query bind target must be a struct")
	}

	q := r.URL.Query()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		tag := sf.Tag.Get("query")
		if tag == "" || tag == "-" {
			continue
		}
		name := tag
		if idx := strings.Index(name, ","); idx >= 0 {
			name = name[:idx]
		}
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}

		fv := rv.Field(i)
		switch fv.Kind() {
		case reflect.String:
			fv.SetString(raw)
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return dst, perr.InvalidArgf("query param %q must be an integer", name)
			}
			fv.SetInt(n)
		case reflect.Float64:
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return dst, perr.InvalidArgf("query param %q must be a number", name)
			}
			fv.SetFloat(f)
		case reflect.Bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return dst, perr.InvalidArgf("query param %q must be a boolean", name)
			}
			fv.SetBool(b)
		default:
			return dst, perr.Newf(perr.ErrorCodeInvalidArgument, "unsupported query field kind %s", fv.Kind())
		}
	}

	if err := validate(dst); err != nil {
		return dst, err
	}
	return dst, nil
}
