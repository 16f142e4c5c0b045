package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/terradue/aeronet-go"
	"github.com/terradue/aeronet-go/client"
	"github.com/terradue/aeronet-go/filter"
	"github.com/terradue/aeronet-go/stac"
	"github.com/terradue/aeronet-go/table"
)

// errUsage marks errors caused by invalid flags or configuration.
var errUsage = errors.New("usage error")

type usageErr struct{ err error }

func (e *usageErr) Error() string   { return e.err.Error() }
func (e *usageErr) Unwrap() []error { return []error{e.err, errUsage} }

func usageError(err error) error {
	return &usageErr{err: err}
}

// errorKind names the failure category printed before the message.
func errorKind(err error) string {
	if kind := filter.KindName(err); kind != "" {
		return kind
	}

	var (
		te *client.TransportError
		me *table.MaterializationError
		se *stac.StationError
	)
	switch {
	case errors.As(err, &te):
		return "TransportError"
	case errors.As(err, &me), errors.Is(err, table.ErrUnsupportedFormat):
		return "MaterializationError"
	case errors.As(err, &se), errors.Is(err, stac.ErrInvalidItem):
		return "InvalidStation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Canceled"
	case errors.Is(err, errUsage),
		errors.Is(err, aeronet.ErrInvalidConfig),
		errors.Is(err, aeronet.ErrInvalidRequest),
		errors.Is(err, filter.ErrUnknownLanguage):
		return "UsageError"
	default:
		return "Error"
	}
}

// printError writes "<Kind>: <message>" to w.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s: %v\n", errorKind(err), err)
}
