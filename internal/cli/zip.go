package cli

import (
	"fmt"
	"os"
	"path/filepath"

	infrasunat "github.com/jhoicas/facturacion-sunat/internal/infrastructure/sunat"
	"github.com/spf13/cobra"
)

func newZipCmd() *cobra.Command {
	zipCmd := &cobra.Command{
		Use:   "zip",
		Short: "Empaquetado de envío",
	}

	pkg := &cobra.Command{
		Use:   "package FILE.xml",
		Short: "Genera el ZIP de envío (dummy/ + XML firmado)",
		Long: `Empaqueta el XML firmado con el nombre {RUC}-{TIPO}-{SERIE}-{NUMERO}.xml.
La clave se toma del nombre del archivo si sigue ese formato; los flags la sobrescriben.`,
		Args: cobra.ExactArgs(1),
		RunE: runZipPackage,
	}
	addKeyFlags(pkg)
	pkg.Flags().StringP("out", "o", "", "Directorio o archivo de salida")
	zipCmd.AddCommand(pkg)
	return zipCmd
}

func runZipPackage(cmd *cobra.Command, args []string) error {
	key, err := resolveKey(cmd, args[0])
	if err != nil {
		return err
	}
	signed, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	zipBytes, err := infrasunat.Package(signed, key.RUC, key.TypeCode, key.Series, key.Number)
	if err != nil {
		return err
	}

	_, zipName := infrasunat.FileNames(key.RUC, key.TypeCode, key.Series, key.Number)
	out, _ := cmd.Flags().GetString("out")
	switch {
	case out == "":
		out = filepath.Join(filepath.Dir(args[0]), zipName)
	case isDir(out):
		out = filepath.Join(out, zipName)
	}
	if err := os.WriteFile(out, zipBytes, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", out, len(zipBytes))
	return nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
