package audit

// RedactedPlaceholder replaces the value of every redacted parameter.
const RedactedPlaceholder = "This parameter isn't loggable!"

// Param declares one formal parameter of an operation.
type Param struct {
	Name     string
	Redacted bool
}

// Arg declares a parameter that is logged as-is.
func Arg(name string) Param {
	return Param{Name: name}
}

// Secret declares a parameter that is always replaced by RedactedPlaceholder.
func Secret(name string) Param {
	return Param{Name: name, Redacted: true}
}

// Operation is the single declaration of an audited operation: its logged
// name and its parameters in call order. Call sites pass their arguments in
// the same order.
type Operation struct {
	Name   string
	Params []Param
}

// Declare builds an Operation.
func Declare(name string, params ...Param) Operation {
	return Operation{Name: name, Params: params}
}

type unset struct{}

// Unset marks an argument the caller did not supply. It is left out of the
// request instead of being logged as null.
var Unset any = unset{}

// OrUnset returns Unset for the zero value of T and v otherwise.
func OrUnset[T comparable](v T) any {
	var zero T
	if v == zero {
		return Unset
	}
	return v
}

// SliceOrUnset returns Unset for an empty slice and v otherwise.
func SliceOrUnset[T any](v []T) any {
	if len(v) == 0 {
		return Unset
	}
	return v
}

// BuildRequest zips params with args positionally. Only len(args) parameters
// are considered; Unset arguments are skipped and redacted parameters get the
// placeholder.
func BuildRequest(params []Param, args []any) Request {
	n := len(args)
	if n > len(params) {
		n = len(params)
	}

	req := make(Request, 0, n)
	for i := 0; i < n; i++ {
		if args[i] == Unset {
			continue
		}
		value := args[i]
		if params[i].Redacted {
			value = RedactedPlaceholder
		}
		req = append(req, Field{Name: params[i].Name, Value: value})
	}
	return req
}
