package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	infrasunat "github.com/jhoicas/facturacion-sunat/internal/infrastructure/sunat"
	"github.com/spf13/cobra"
)

func newCDRCmd() *cobra.Command {
	cdrCmd := &cobra.Command{
		Use:   "cdr",
		Short: "Constancias de recepción",
	}
	cdrCmd.AddCommand(&cobra.Command{
		Use:   "parse FILE",
		Short: "Interpreta un CDR (ZIP, Base64, sobre SOAP o ApplicationResponse)",
		Long:  "Con FILE = - se lee de la entrada estándar.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body []byte
			var err error
			if args[0] == "-" {
				body, err = io.ReadAll(cmd.InOrStdin())
			} else {
				body, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			rec, err := infrasunat.ParseAcknowledgment(body)
			if err != nil {
				return err
			}
			printAcknowledgment(cmd.OutOrStdout(), rec)
			if rec.Outcome == entity.OutcomeRejected {
				return fmt.Errorf("comprobante rechazado: %s", rec.ResponseCode)
			}
			return nil
		},
	})
	return cdrCmd
}

func printAcknowledgment(w io.Writer, rec *entity.AcknowledgmentRecord) {
	fmt.Fprintf(w, "Resultado:   %s\n", rec.Outcome)
	fmt.Fprintf(w, "Código:      %s\n", rec.ResponseCode)
	fmt.Fprintf(w, "Descripción: %s\n", rec.Description)
	fmt.Fprintf(w, "Referencia:  %s\n", rec.ReferenceID)
	if !rec.RespondedAt.IsZero() {
		fmt.Fprintf(w, "Respuesta:   %s\n", rec.RespondedAt.Format("2006-01-02 15:04:05"))
	}
	for _, n := range rec.Notes {
		fmt.Fprintf(w, "Nota:        %s - %s\n", n.Code, n.Description)
	}
}
