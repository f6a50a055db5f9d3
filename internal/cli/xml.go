package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jhoicas/facturacion-sunat/internal/infrastructure/sunat/signer"
	"github.com/jhoicas/facturacion-sunat/pkg/sunat"
	"github.com/spf13/cobra"
)

func newXMLCmd() *cobra.Command {
	xmlCmd := &cobra.Command{
		Use:   "xml",
		Short: "Firma y verificación de XML UBL",
	}

	sign := &cobra.Command{
		Use:   "sign FILE.xml",
		Short: "Firma un comprobante con XML-DSig enveloped",
		Long: `Firma el XML con el certificado PKCS#12 indicado. Antes de firmar se corrige el RUC
del bloque cac:Signature. Con --allow-simulated, si el certificado no sirve se escribe
el XML con la marca de firma simulada en lugar de fallar.`,
		Args: cobra.ExactArgs(1),
		RunE: runXMLSign,
	}
	sign.Flags().String("cert", "", "Ruta al certificado .p12/.pfx")
	sign.Flags().StringP("password", "p", "", "Contraseña del PKCS#12")
	sign.Flags().StringP("out", "o", "", "Archivo de salida (por defecto FILE-firmado.xml)")
	sign.Flags().String("signer-ruc", "", "RUC de respaldo si el certificado no lo trae")
	sign.Flags().String("signer-name", "", "Razón social de respaldo")
	sign.Flags().Bool("allow-simulated", false, "Emitir XML simulado si no se puede firmar")
	sign.Flags().Duration("grace", 10*time.Minute, "Tolerancia de reloj en la vigencia")
	_ = sign.MarkFlagRequired("cert")

	verify := &cobra.Command{
		Use:   "verify FILE.xml",
		Short: "Verifica digest y firma de un XML firmado",
		Args:  cobra.ExactArgs(1),
		RunE:  runXMLVerify,
	}

	xmlCmd.AddCommand(sign, verify)
	return xmlCmd
}

func runXMLSign(cmd *cobra.Command, args []string) error {
	in, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	certPath, _ := cmd.Flags().GetString("cert")
	password, _ := cmd.Flags().GetString("password")
	out, _ := cmd.Flags().GetString("out")
	allowSim, _ := cmd.Flags().GetBool("allow-simulated")
	grace, _ := cmd.Flags().GetDuration("grace")
	signerRUC, _ := cmd.Flags().GetString("signer-ruc")
	signerName, _ := cmd.Flags().GetString("signer-name")
	if out == "" {
		out = strings.TrimSuffix(args[0], ".xml") + "-firmado.xml"
	}

	log := newLogger(cmd)
	svc := signer.NewService(nil, signer.Options{
		DefaultSignerRUC:  signerRUC,
		DefaultSignerName: signerName,
		Grace:             grace,
	}, signer.SystemClock, log.Component("signer"))

	var signed []byte
	if allowSim {
		res, err := svc.SignWithFallback(in, certPath, password)
		if err != nil {
			return err
		}
		signed = res.XML
		if res.Mode == sunat.SignatureModeSimulated {
			fmt.Fprintf(cmd.OutOrStdout(), "Modo:    SIMULADO (%s)\n", res.Reason)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Modo:    FIRMADO\nRUC:     %s\nDigest:  %s\n", res.SignerRUC, res.DigestValue)
		}
	} else {
		bundle, err := svc.LoadValidated(certPath, password)
		if err != nil {
			return err
		}
		res, err := svc.Sign(in, bundle)
		if err != nil {
			return err
		}
		signed = res.XML
		fmt.Fprintf(cmd.OutOrStdout(), "Modo:    FIRMADO\nRUC:     %s\nDigest:  %s\n", res.SignerRUC, res.DigestValue)
	}

	if err := os.WriteFile(out, signed, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Salida:  %s (%d bytes)\n", out, len(signed))
	return nil
}

func runXMLVerify(cmd *cobra.Command, args []string) error {
	in, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	if signer.IsSimulated(in) {
		return fmt.Errorf("%s: firma simulada, no hay nada que verificar", args[0])
	}
	cert, err := signer.VerifySignature(in, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Firma válida\nCertificado: %s\nRUC:         %s\n",
		cert.Subject.CommonName, nonEmpty(signer.ExtractTaxID(cert), "(no embebido)"))
	return nil
}
