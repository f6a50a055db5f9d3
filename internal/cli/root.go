// Package cli implementa sunatctl, la herramienta de operación para certificados, RUC,
// firma, empaquetado y consultas a SUNAT sin pasar por la API.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jhoicas/facturacion-sunat/pkg/config"
	"github.com/jhoicas/facturacion-sunat/pkg/logger"
	"github.com/spf13/cobra"
)

// NewRootCommand arma el árbol de comandos.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "sunatctl",
		Short:         "Herramienta de operación de comprobantes electrónicos SUNAT",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "Log de depuración en stderr")

	root.AddCommand(
		newCertCmd(),
		newRUCCmd(),
		newXMLCmd(),
		newZipCmd(),
		newCDRCmd(),
		newStatusCmd(),
	)
	return root
}

// Execute punto de entrada de cmd/sunatctl.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func newLogger(cmd *cobra.Command) *logger.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !verbose {
		return logger.Nop()
	}
	return logger.New(logger.Config{Env: "development", Level: "debug", Output: cmd.ErrOrStderr()})
}

// loadConfig configuración del entorno (.env, variables SUNAT_*).
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("cargar configuración: %w", err)
	}
	return cfg, nil
}

// documentKey clave natural de un comprobante.
type documentKey struct {
	RUC      string
	TypeCode string
	Series   string
	Number   int64
}

// keyFromFileName deduce la clave de un nombre {RUC}-{TIPO}-{SERIE}-{NUMERO}.xml|.zip.
func keyFromFileName(path string) (documentKey, bool) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.Split(base, "-")
	if len(parts) != 4 {
		return documentKey{}, false
	}
	n, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil || n <= 0 {
		return documentKey{}, false
	}
	return documentKey{RUC: parts[0], TypeCode: parts[1], Series: parts[2], Number: n}, true
}

// addKeyFlags --ruc --type --series --number.
func addKeyFlags(cmd *cobra.Command) {
	cmd.Flags().String("ruc", "", "RUC del emisor")
	cmd.Flags().String("type", "", "Tipo de comprobante (01, 03, 07, 08)")
	cmd.Flags().String("series", "", "Serie (F001, B001...)")
	cmd.Flags().Int64("number", 0, "Correlativo")
}

// resolveKey completa la clave con los flags; los flags ganan sobre el nombre de archivo.
func resolveKey(cmd *cobra.Command, path string) (documentKey, error) {
	key, _ := keyFromFileName(path)
	if v, _ := cmd.Flags().GetString("ruc"); v != "" {
		key.RUC = v
	}
	if v, _ := cmd.Flags().GetString("type"); v != "" {
		key.TypeCode = v
	}
	if v, _ := cmd.Flags().GetString("series"); v != "" {
		key.Series = v
	}
	if v, _ := cmd.Flags().GetInt64("number"); v > 0 {
		key.Number = v
	}
	if key.RUC == "" || key.TypeCode == "" || key.Series == "" || key.Number <= 0 {
		return key, fmt.Errorf("clave incompleta: use --ruc --type --series --number o un archivo {RUC}-{TIPO}-{SERIE}-{NUMERO}")
	}
	return key, nil
}
