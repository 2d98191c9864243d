package element

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"unsafe"

	"github.com/djarekg/tampa-taffy/internal/errors"
)

// fieldInfo locates one binding in a host struct type.
type fieldInfo struct {
	index  []int
	field  string
	name   string
	attr   string
	noAttr bool
}

// layouts caches the binding layout per host struct type.
var layouts sync.Map // reflect.Type -> []fieldInfo

var binderType = reflect.TypeOf((*binder)(nil)).Elem()

// Init binds every Field marker declared on host. host must be a non-nil
// pointer to a struct implementing Host; bindings tied to an attribute also
// need AttributeHost. Fields that are not markers are left untouched, nil
// markers are skipped, and calling Init again is a no-op.
func Init(host any) error {
	rv := reflect.ValueOf(host)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return errors.New(errors.CodeInvalidHost).
			WithDetailf("got %T, want a non-nil pointer to a struct", host)
	}

	h, ok := host.(Host)
	if !ok {
		return missingCapability(rv.Type(), hostMethods)
	}
	attrs, _ := host.(AttributeHost)

	infos, err := layoutOf(rv.Elem().Type())
	if err != nil {
		return err
	}

	logger := loggerFor(host)
	elem := rv.Elem()
	for _, info := range infos {
		fv := elem.FieldByIndex(info.index)
		if !fv.CanInterface() {
			fv = reflect.NewAt(fv.Type(), unsafe.Pointer(fv.UnsafeAddr())).Elem()
		}
		if fv.IsNil() {
			continue
		}

		b := fv.Interface().(binder)
		decl := b.declaration()
		if !decl.State && !decl.NoAttribute {
			switch {
			case info.noAttr:
				decl.NoAttribute = true
			case decl.Attribute != "":
			case info.attr != "":
				decl.Attribute = info.attr
			default:
				decl.Attribute = strings.ToLower(info.name)
			}
		}
		if !decl.HasAttribute() {
			decl.Reflect = false
		}

		if decl.HasAttribute() && attrs == nil {
			return missingCapability(rv.Type(), attributeHostMethods).
				WithSuggestion(fmt.Sprintf("declare %s with element.NoAttribute() or give the host attribute support", info.field))
		}

		if err := b.bind(h, attrs, info.name, decl, logger); err != nil {
			return err
		}
	}
	return nil
}

// Connect initializes host and runs its connected callback.
func Connect(host any) error {
	if err := Init(host); err != nil {
		return err
	}
	if l, ok := host.(lifecycle); ok {
		l.ConnectedCallback()
	}
	return nil
}

// Disconnect runs the host's disconnected callback. Bindings stay in place
// for a later Connect.
func Disconnect(host any) {
	if l, ok := host.(lifecycle); ok {
		l.DisconnectedCallback()
	}
}

func layoutOf(t reflect.Type) ([]fieldInfo, error) {
	if v, ok := layouts.Load(t); ok {
		return v.([]fieldInfo), nil
	}

	var infos []fieldInfo
	if err := collectFields(t, nil, &infos, map[string]string{}); err != nil {
		return nil, err
	}

	v, _ := layouts.LoadOrStore(t, infos)
	return v.([]fieldInfo), nil
}

// collectFields walks t and the structs it embeds by value.
func collectFields(t reflect.Type, parent []int, out *[]fieldInfo, seen map[string]string) error {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(append([]int(nil), parent...), i)

		if sf.Type.Implements(binderType) {
			name := sf.Tag.Get("prop")
			if name == "" {
				name = propertyName(sf.Name)
			}
			if prev, dup := seen[name]; dup {
				return errors.New(errors.CodeDuplicateProperty).
					WithDetailf("%s: fields %s and %s both declare %q", t, prev, sf.Name, name)
			}
			seen[name] = sf.Name

			info := fieldInfo{index: index, field: sf.Name, name: name}
			if attr, ok := sf.Tag.Lookup("attr"); ok {
				if attr == "-" {
					info.noAttr = true
				} else {
					info.attr = attr
				}
			}
			*out = append(*out, info)
			continue
		}

		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			if err := collectFields(sf.Type, index, out, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

// missingCapability names the methods of want that t does not have.
func missingCapability(t reflect.Type, want []string) *errors.Error {
	var missing []string
	for _, m := range want {
		if _, ok := t.MethodByName(m); !ok {
			missing = append(missing, m)
		}
	}
	if len(missing) == 0 {
		// Methods exist but with the wrong signatures.
		missing = want
	}
	return errors.New(errors.CodeMissingCapability).
		WithDetailf("host %s does not implement %s", t, strings.Join(missing, ", ")).
		WithSuggestion("embed element.Base in the host struct")
}

func loggerFor(host any) *slog.Logger {
	if l, ok := host.(interface{ Logger() *slog.Logger }); ok {
		if logger := l.Logger(); logger != nil {
			return logger
		}
	}
	return slog.Default()
}
