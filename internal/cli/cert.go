package cli

import (
	"fmt"
	"time"

	"github.com/jhoicas/facturacion-sunat/internal/infrastructure/sunat/signer"
	"github.com/spf13/cobra"
)

func newCertCmd() *cobra.Command {
	certCmd := &cobra.Command{
		Use:   "cert",
		Short: "Certificados digitales PKCS#12",
	}

	inspect := &cobra.Command{
		Use:   "inspect FILE.p12",
		Short: "Muestra sujeto, RUC, vigencia y llave; valida el certificado",
		Args:  cobra.ExactArgs(1),
		RunE:  runCertInspect,
	}
	inspect.Flags().StringP("password", "p", "", "Contraseña del PKCS#12")
	inspect.Flags().Duration("grace", 10*time.Minute, "Tolerancia de reloj en la vigencia")
	certCmd.AddCommand(inspect)
	return certCmd
}

func runCertInspect(cmd *cobra.Command, args []string) error {
	password, _ := cmd.Flags().GetString("password")
	grace, _ := cmd.Flags().GetDuration("grace")

	b, err := signer.LoadCertificate(args[0], password)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sujeto:       %s\n", b.Subject)
	fmt.Fprintf(out, "Organización: %s\n", b.Organization)
	fmt.Fprintf(out, "RUC:          %s\n", nonEmpty(b.TaxID, "(no embebido)"))
	fmt.Fprintf(out, "Emisor:       %s\n", b.Issuer)
	fmt.Fprintf(out, "Serie:        %s\n", b.SerialNumber)
	fmt.Fprintf(out, "Vigencia:     %s → %s\n", b.NotBefore.Format(time.RFC3339), b.NotAfter.Format(time.RFC3339))
	fmt.Fprintf(out, "Llave:        %s %d bits\n", b.KeyAlgorithm, b.KeySize)
	fmt.Fprintf(out, "Algoritmo:    %s\n", b.SignatureAlgorithm)
	fmt.Fprintf(out, "Cadena:       %d certificado(s)\n", len(b.Chain))

	if err := signer.ValidateCertificate(b, time.Now(), grace); err != nil {
		fmt.Fprintf(out, "Estado:       NO APTO (%v)\n", err)
		return err
	}
	fmt.Fprintln(out, "Estado:       APTO PARA FIRMAR")
	return nil
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
