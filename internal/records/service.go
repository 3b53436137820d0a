package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/go-playground/validator/v10"

	"github.com/pym-escuchas/escuchas/internal/auth"
	"github.com/pym-escuchas/escuchas/internal/backend"
)

// Messages shown for record operations.
const (
	MsgSaved           = "¡Registro Guardado Exitosamente!"
	MsgSubmitFailed    = "Error al guardar el registro."
	MsgSubmitOffline   = "Error de conexión al enviar el formulario."
	MsgLoadFailed      = "Error al cargar registros."
	MsgLoadOffline     = "No se pudo conectar al servidor para obtener los registros."
	MsgNothingToExport = "No hay registros para exportar según los filtros actuales."
)

// Service talks to the backend for records and advisor lookups.
type Service struct {
	logger             *slog.Logger
	validate           *validator.Validate
	defaultCoordinator string
}

// NewService constructs a Service. defaultCoordinator fills an empty coordinator from
// the SQL source.
func NewService(logger *slog.Logger, defaultCoordinator string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, validate: NewValidator(), defaultCoordinator: defaultCoordinator}
}

// Validator returns the field validator.
func (s *Service) Validator() *validator.Validate {
	return s.validate
}

// List fetches every record visible to the caller.
func (s *Service) List(ctx context.Context, caller backend.Caller) ([]Record, error) {
	var resp recordsResponse
	if err := caller.Get(ctx, "/api/records", nil, &resp); err != nil {
		return nil, fmt.Errorf("records: list: %w", err)
	}
	if resp.Records == nil {
		return []Record{}, nil
	}
	return resp.Records, nil
}

// LoadMessage maps a list failure to the banner text.
func LoadMessage(err error) string {
	if backend.IsBusiness(err) {
		return backend.UserMessage(err, MsgLoadFailed)
	}
	return backend.UserMessage(err, MsgLoadOffline)
}

func sourceOf(identity *auth.Identity) (path, label string) {
	if identity != nil && identity.DataSource == auth.DataSourceSQL {
		return "/api/advisor/sql/", "SQL"
	}
	return "/api/advisor/sheet/", "Sheet"
}

// Lookup fills the derived advisor fields of the draft from the caller's data source.
// The derived fields are cleared before the call and stay blank on failure, where the
// DNI field carries the reason. The backend error is returned for session handling.
func (s *Service) Lookup(ctx context.Context, caller backend.Caller, identity *auth.Identity, form *Form) error {
	dni := form.Values.DNIAsesor
	if !dniPattern.MatchString(dni) {
		return nil
	}
	form.ClearDerived()
	form.setError(FieldDNIAsesor, "")

	prefix, label := sourceOf(identity)
	var advisor Advisor
	err := caller.Get(ctx, prefix+url.PathEscape(dni), nil, &advisor)
	if err != nil {
		s.logger.Info("advisor lookup failed", slog.String("source", label), slog.Any("error", err))
		var be *backend.Error
		switch {
		case errors.As(err, &be) && be.Message != "":
			form.setError(FieldDNIAsesor, be.Message)
		case backend.IsBusiness(err):
			form.setError(FieldDNIAsesor, "DNI no encontrado en "+label)
		default:
			form.setError(FieldDNIAsesor, "Error conectando al servidor ("+label+")")
		}
		return err
	}

	form.Values.Asesor = advisor.Asesor
	form.Values.Campana = advisor.Campana
	form.Values.Supervisor = advisor.Supervisor
	form.Values.Coordinador = advisor.Coordinador
	if form.Values.Coordinador == "" && label == "SQL" {
		form.Values.Coordinador = s.defaultCoordinator
	}
	return nil
}

// ErrInvalidForm reports a draft that failed validation; nothing was sent.
var ErrInvalidForm = errors.New("records: invalid form")

// Submit validates the draft and posts it. On success the draft is reset keeping the
// auditor identity; on failure the draft is kept and Banner explains why.
func (s *Service) Submit(ctx context.Context, caller backend.Caller, identity *auth.Identity, form *Form) error {
	form.Banner = ""
	form.Bind(identity)
	if !form.Validate(s.validate) {
		form.Banner = MsgFixErrors
		return ErrInvalidForm
	}

	payload := Record{
		Telefono:       form.Values.Telefono,
		DNIAsesor:      form.Values.DNIAsesor,
		Asesor:         form.Values.Asesor,
		Campana:        form.Values.Campana,
		Supervisor:     form.Values.Supervisor,
		Coordinador:    form.Values.Coordinador,
		TipificaBien:   form.Values.TipificaBien,
		ClienteDesiste: form.Values.ClienteDesiste,
		Observaciones:  form.Values.Observaciones,
	}
	if identity != nil {
		payload.DNIAuditor = identity.AuditorID
		payload.NombreAuditor = identity.FullName
	}

	var resp submitResponse
	if err := caller.Post(ctx, "/api/submit", payload, &resp); err != nil {
		s.logger.Warn("submit record", slog.Any("error", err))
		if backend.IsBusiness(err) {
			form.Banner = backend.UserMessage(err, MsgSubmitFailed)
		} else {
			form.Banner = backend.UserMessage(err, MsgSubmitOffline)
		}
		return err
	}
	form.Reset(identity)
	return nil
}
