package records

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pym-escuchas/escuchas/internal/auth"
)

// Field names, as posted by the form.
const (
	FieldTelefono       = "telefono"
	FieldDNIAsesor      = "dni_asesor"
	FieldAsesor         = "asesor"
	FieldCampana        = "campana"
	FieldSupervisor     = "supervisor"
	FieldCoordinador    = "coordinador"
	FieldTipificaBien   = "tipifica_bien"
	FieldClienteDesiste = "cliente_desiste"
	FieldObservaciones  = "observaciones"
	FieldDNIAuditor     = "dni_auditor"
	FieldNombreAuditor  = "nombre_auditor"
)

// Options of the two yes/no questions.
var Options = []string{"SI", "NO", "NO APLICA"}

// MsgFixErrors is the banner shown when a submission fails validation.
const MsgFixErrors = "Por favor, corrija los errores en el formulario."

var (
	celularPattern = regexp.MustCompile(`^9\d{8}$`)
	dniPattern     = regexp.MustCompile(`^\d{8,9}$`)
)

// fieldRules are the validator tags of the required fields, in display order.
var fieldRules = []struct {
	field string
	tag   string
}{
	{FieldTelefono, "required,celular"},
	{FieldDNIAsesor, "required,dni"},
	{FieldTipificaBien, "required,oneof='SI' 'NO' 'NO APLICA'"},
	{FieldClienteDesiste, "required,oneof='SI' 'NO' 'NO APLICA'"},
}

var fieldMessages = map[string]string{
	"telefono.required":        "El teléfono es obligatorio.",
	"telefono.celular":         "Debe ser un número de 9 dígitos que comience con 9.",
	"dni_asesor.required":      "El DNI del asesor es obligatorio.",
	"dni_asesor.dni":           "Debe ser numérico de 8 o 9 dígitos.",
	"tipifica_bien.required":   `Seleccione una opción para "¿Tipifica bien?".`,
	"tipifica_bien.oneof":      `Seleccione una opción para "¿Tipifica bien?".`,
	"cliente_desiste.required": `Seleccione una opción para "¿Consentimiento?".`,
	"cliente_desiste.oneof":    `Seleccione una opción para "¿Consentimiento?".`,
}

// NewValidator returns the validator used for record fields.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("celular", func(fl validator.FieldLevel) bool {
		return celularPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("dni", func(fl validator.FieldLevel) bool {
		return dniPattern.MatchString(fl.Field().String())
	})
	return v
}

// Values are the form fields. Derived and auditor fields are never taken from input.
type Values struct {
	Telefono       string `json:"telefono"`
	DNIAsesor      string `json:"dni_asesor"`
	Asesor         string `json:"asesor"`
	Campana        string `json:"campana"`
	Supervisor     string `json:"supervisor"`
	Coordinador    string `json:"coordinador"`
	TipificaBien   string `json:"tipifica_bien"`
	ClienteDesiste string `json:"cliente_desiste"`
	Observaciones  string `json:"observaciones"`
	DNIAuditor     string `json:"dni_auditor"`
	NombreAuditor  string `json:"nombre_auditor"`
}

// Form is the submission draft of one browser session.
type Form struct {
	Values Values            `json:"values"`
	Errors map[string]string `json:"errors"`
	Banner string            `json:"banner,omitempty"`
	// Rev is the stored revision the form was loaded at or saved as.
	Rev int64 `json:"-"`
}

// NewForm returns a blank draft carrying the auditor identity.
func NewForm(identity *auth.Identity) *Form {
	f := &Form{Errors: map[string]string{}}
	f.Reset(identity)
	return f
}

// Reset blanks every field except the auditor identity and drops all errors.
func (f *Form) Reset(identity *auth.Identity) {
	f.Values = Values{}
	if identity != nil {
		f.Values.DNIAuditor = identity.AuditorID
		f.Values.NombreAuditor = identity.FullName
	}
	f.Errors = map[string]string{}
	f.Banner = ""
}

// Bind refreshes the auditor fields from the identity.
func (f *Form) Bind(identity *auth.Identity) {
	if identity == nil {
		return
	}
	f.Values.DNIAuditor = identity.AuditorID
	f.Values.NombreAuditor = identity.FullName
	if f.Errors == nil {
		f.Errors = map[string]string{}
	}
}

// Editable reports whether field accepts user input.
func Editable(field string) bool {
	switch field {
	case FieldTelefono, FieldDNIAsesor, FieldTipificaBien, FieldClienteDesiste, FieldObservaciones:
		return true
	default:
		return false
	}
}

// Change stores the sanitised input and re-validates only a field already in error.
func (f *Form) Change(v *validator.Validate, field, raw string) {
	if !Editable(field) {
		return
	}
	value := Sanitize(field, raw, f.Get(field))
	f.set(field, value)
	if f.Errors[field] != "" {
		f.setError(field, ValidateField(v, field, value))
	}
}

// Blur validates field and reports whether an advisor lookup should follow.
func (f *Form) Blur(v *validator.Validate, field string) bool {
	if !Editable(field) {
		return false
	}
	msg := ValidateField(v, field, f.Get(field))
	f.setError(field, msg)
	return field == FieldDNIAsesor && msg == ""
}

// Validate checks every required field, replacing previous errors.
func (f *Form) Validate(v *validator.Validate) bool {
	f.Errors = map[string]string{}
	for _, rule := range fieldRules {
		f.setError(rule.field, ValidateField(v, rule.field, f.Get(rule.field)))
	}
	return len(f.Errors) == 0
}

// HasError reports whether field carries an error.
func (f *Form) HasError(field string) bool {
	return f.Errors[field] != ""
}

// ClearDerived blanks the four advisor fields and their errors.
func (f *Form) ClearDerived() {
	f.Values.Asesor = ""
	f.Values.Campana = ""
	f.Values.Supervisor = ""
	f.Values.Coordinador = ""
	for _, field := range advisorFields {
		delete(f.Errors, field)
	}
}

// Get returns the value of field.
func (f *Form) Get(field string) string {
	switch field {
	case FieldTelefono:
		return f.Values.Telefono
	case FieldDNIAsesor:
		return f.Values.DNIAsesor
	case FieldAsesor:
		return f.Values.Asesor
	case FieldCampana:
		return f.Values.Campana
	case FieldSupervisor:
		return f.Values.Supervisor
	case FieldCoordinador:
		return f.Values.Coordinador
	case FieldTipificaBien:
		return f.Values.TipificaBien
	case FieldClienteDesiste:
		return f.Values.ClienteDesiste
	case FieldObservaciones:
		return f.Values.Observaciones
	case FieldDNIAuditor:
		return f.Values.DNIAuditor
	case FieldNombreAuditor:
		return f.Values.NombreAuditor
	}
	return ""
}

func (f *Form) set(field, value string) {
	switch field {
	case FieldTelefono:
		f.Values.Telefono = value
	case FieldDNIAsesor:
		f.Values.DNIAsesor = value
	case FieldTipificaBien:
		f.Values.TipificaBien = value
	case FieldClienteDesiste:
		f.Values.ClienteDesiste = value
	case FieldObservaciones:
		f.Values.Observaciones = value
	}
}

// put stores any non-auditor field, derived ones included.
func (f *Form) put(field, value string) {
	switch field {
	case FieldAsesor:
		f.Values.Asesor = value
	case FieldCampana:
		f.Values.Campana = value
	case FieldSupervisor:
		f.Values.Supervisor = value
	case FieldCoordinador:
		f.Values.Coordinador = value
	default:
		f.set(field, value)
	}
}

func (f *Form) setError(field, msg string) {
	if f.Errors == nil {
		f.Errors = map[string]string{}
	}
	if msg == "" {
		delete(f.Errors, field)
		return
	}
	f.Errors[field] = msg
}

// Sanitize applies the input rules of field. For the phone a leading digit other than 9
// keeps the previous value.
func Sanitize(field, raw, previous string) string {
	switch field {
	case FieldDNIAsesor:
		return truncate(digitsOnly(raw), 9)
	case FieldTelefono:
		digits := digitsOnly(raw)
		if digits != "" && digits[0] != '9' {
			digits = previous
		}
		return truncate(digits, 9)
	case FieldTipificaBien, FieldClienteDesiste:
		return strings.TrimSpace(raw)
	default:
		return raw
	}
}

// ValidateField returns the Spanish error message for value, or "".
func ValidateField(v *validator.Validate, field, value string) string {
	for _, rule := range fieldRules {
		if rule.field != field {
			continue
		}
		err := v.Var(value, rule.tag)
		if err == nil {
			return ""
		}
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			if msg, ok := fieldMessages[field+"."+fieldErrs[0].Tag()]; ok {
				return msg
			}
		}
		return "Valor inválido."
	}
	return ""
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
