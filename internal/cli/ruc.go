package cli

import (
	"fmt"

	"github.com/jhoicas/facturacion-sunat/pkg/sunat"
	"github.com/spf13/cobra"
)

func newRUCCmd() *cobra.Command {
	rucCmd := &cobra.Command{
		Use:   "ruc",
		Short: "Operaciones sobre RUC",
	}
	rucCmd.AddCommand(&cobra.Command{
		Use:   "validate RUC [RUC...]",
		Short: "Valida el dígito verificador (módulo 11)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invalid := 0
			for _, ruc := range args {
				ok, reason := sunat.ValidateRUC(ruc)
				mark := "OK"
				if !ok {
					mark = "INVÁLIDO"
					invalid++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", ruc, mark, reason)
			}
			if invalid > 0 {
				return fmt.Errorf("%d RUC inválido(s)", invalid)
			}
			return nil
		},
	})
	return rucCmd
}
