package options

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"tableflip.dev/wbc/pkg/fault"
	"tableflip.dev/wbc/pkg/printers"
)

// ErrReported is returned after an error has already been written to the
// output, so the caller only sets the exit status.
var ErrReported = errors.New("error reported")

// OutputOptions
type OutputOptions struct {
	JSON   bool
	Output string
}

func AddOutputArg(cmd *cobra.Command, po *OutputOptions) {
	cmd.Flags().BoolVar(&po.JSON, "json", false,
		"Output as JSON. Same as --output=json.")
	cmd.Flags().StringVarP(&po.Output, "output", "o", "",
		"Output format. One of 'json' or 'yaml'; empty prints tables.")
}

// Format returns the selected output format.
func (o *OutputOptions) Format() (printers.Format, error) {
	if o.JSON {
		return printers.JSON, nil
	}
	return printers.ParseFormat(o.Output)
}

// HandleError prints err as an error document in machine mode. Permission
// problems collapse into a single message in either mode.
func (o *OutputOptions) HandleError(err error) error {
	if err == nil {
		return nil
	}
	format, ferr := o.Format()
	if ferr != nil {
		return ferr
	}
	if format != printers.Pretty {
		if err := printers.Encode(color.Output, format, printers.NewErrorDoc(err)); err != nil {
			return err
		}
		return ErrReported
	}
	if fault.IsAuthorization(err) {
		return fmt.Errorf("permission denied: %w", err)
	}
	return err
}
