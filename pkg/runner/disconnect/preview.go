package disconnect

import (
	"context"
	"errors"
	"io"

	"tableflip.dev/wbc/pkg/app"
	"tableflip.dev/wbc/pkg/connection"
	"tableflip.dev/wbc/pkg/printers"
)

// Preview lists the connections eligible for disconnection in a scope.
type Preview struct {
	Service *app.Service
	Query   connection.Query
	Format  printers.Format
	Out     io.Writer
}

func (p *Preview) Do(ctx context.Context) error {
	if p.Service == nil {
		return errors.New("can not preview, no service")
	}
	set, err := p.Service.Preview(ctx, p.Query)
	if err != nil {
		return err
	}
	return printers.Print(p.Out, p.Format, printers.NewCandidateDoc(set), func(pp *printers.PrettyPrint) {
		pp.Candidates(set)
	})
}
