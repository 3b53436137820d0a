package records

import (
	"strconv"
	"strings"

	"github.com/ttacon/libphonenumber"

	"github.com/pym-escuchas/escuchas/internal/view"
)

// Record is one call-listening evaluation.
type Record struct {
	ID             int64  `json:"id"`
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
	FechaRegistro  string `json:"fecha_registro"`
}

// SearchFields lists every value the free-text filter looks at.
func (r Record) SearchFields() []string {
	return []string{
		strconv.FormatInt(r.ID, 10), r.Telefono, r.DNIAsesor, r.Asesor, r.Campana,
		r.Supervisor, r.Coordinador, r.TipificaBien, r.ClienteDesiste, r.Observaciones,
		r.DNIAuditor, r.NombreAuditor, r.FechaRegistro,
	}
}

// Stamp is the registration time as "2006-01-02 15:04:05" when it parses, else the raw value.
func (r Record) Stamp() string {
	if t, ok := view.ParseStamp(r.FechaRegistro); ok {
		return t.Format("2006-01-02 15:04:05")
	}
	return r.FechaRegistro
}

// Advisor is the answer of the advisor lookup.
type Advisor struct {
	Asesor      string `json:"asesor"`
	Campana     string `json:"campana"`
	Supervisor  string `json:"supervisor"`
	Coordinador string `json:"coordinador"`
}

type recordsResponse struct {
	Success bool     `json:"success"`
	Records []Record `json:"records"`
}

type submitResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// FormatStamp renders a timestamp the way es-PE shows it ("02/01/2006, 03:04:05 p. m.").
// Unparseable values are returned unchanged and empty ones as "N/A".
func FormatStamp(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "N/A"
	}
	t, ok := view.ParseStamp(raw)
	if !ok {
		return raw
	}
	suffix := "a. m."
	if t.Hour() >= 12 {
		suffix = "p. m."
	}
	return t.Format("02/01/2006, 03:04:05") + " " + suffix
}

// PhoneLink returns a tel: URI in E.164 form for a Peruvian number, or "".
func PhoneLink(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	num, err := libphonenumber.Parse(raw, "PE")
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return ""
	}
	return "tel:" + libphonenumber.Format(num, libphonenumber.E164)
}
