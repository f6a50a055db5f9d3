package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jhoicas/facturacion-sunat/internal/domain/entity"
	infrasunat "github.com/jhoicas/facturacion-sunat/internal/infrastructure/sunat"
	"github.com/jhoicas/facturacion-sunat/pkg/config"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Consultas a SUNAT",
	}

	query := &cobra.Command{
		Use:   "query",
		Short: "Consulta un ticket o el CDR de un comprobante por su clave",
		Long: `Con --ticket consulta getStatus; si no, getStatusCdr con --ruc --type --series --number.
Las credenciales SOL y el ambiente se leen de la configuración (SUNAT_ENV, SUNAT_USER...).`,
		Args: cobra.NoArgs,
		RunE: runStatusQuery,
	}
	addKeyFlags(query)
	query.Flags().String("ticket", "", "Ticket de un envío asíncrono")
	query.Flags().String("save-cdr", "", "Guarda el ZIP del CDR en esta ruta")
	statusCmd.AddCommand(query)
	return statusCmd
}

func runStatusQuery(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.SUNAT.Env == config.SUNATEnvDev {
		return errors.New("SUNAT_ENV=dev: no hay servicio remoto que consultar")
	}
	ticket, _ := cmd.Flags().GetString("ticket")
	rucFlag, _ := cmd.Flags().GetString("ruc")

	client := infrasunat.NewClient(
		infrasunat.EndpointsFor(cfg.SUNAT.Env, cfg.SUNAT.BillServiceURL, cfg.SUNAT.ConsultServiceURL),
		cfg.SUNAT.Timeout(),
	)
	cred := infrasunat.Credentials{RUC: nonEmpty(rucFlag, cfg.SUNAT.DefaultSignerRUC), User: cfg.SUNAT.User, Password: cfg.SUNAT.Password}
	if cred.RUC == "" {
		return errors.New("indique --ruc: es parte del usuario WS-Security")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.SUNAT.Timeout())
	defer cancel()

	var st *infrasunat.StatusResponse
	if ticket != "" {
		st, err = client.GetStatus(ctx, ticket, cred)
	} else {
		key, kerr := resolveKey(cmd, "")
		if kerr != nil {
			return kerr
		}
		st, err = client.GetStatusCdr(ctx, key.RUC, key.TypeCode, key.Series, key.Number, cred)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Estado:      %s %s\n", st.StatusCode, st.StatusMessage)
	if st.InProcess() {
		fmt.Fprintln(out, "El ticket sigue en proceso; vuelva a consultar más tarde.")
		return nil
	}
	if !st.HasCDR() {
		return nil
	}

	rec, err := infrasunat.ParseAcknowledgment(st.CDRZip)
	if err != nil {
		return err
	}
	printAcknowledgment(out, rec)
	if path, _ := cmd.Flags().GetString("save-cdr"); path != "" {
		if err := os.WriteFile(path, st.CDRZip, 0o644); err != nil {
			return err
		}
	}
	if rec.Outcome == entity.OutcomeUnknown {
		return fmt.Errorf("código de respuesta no reconocido: %s", rec.ResponseCode)
	}
	return nil
}
