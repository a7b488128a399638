package mercadopublico

import (
	"encoding/json"
	"strings"
	"time"

	"TenderMonitor/internal/domain"
)

type listing struct {
	Cantidad int               `json:"Cantidad"`
	Listado  []json.RawMessage `json:"Listado"`
}

type licitacion struct {
	CodigoExterno string   `json:"CodigoExterno"`
	Nombre        string   `json:"Nombre"`
	Descripcion   string   `json:"Descripcion"`
	CodigoEstado  int      `json:"CodigoEstado"`
	MontoEstimado *float64 `json:"MontoEstimado"`
	FechaCierre   *string  `json:"FechaCierre"`
	Fechas        *struct {
		FechaPublicacion *string `json:"FechaPublicacion"`
		FechaCierre      *string `json:"FechaCierre"`
	} `json:"Fechas"`
	Comprador *struct {
		NombreOrganismo string `json:"NombreOrganismo"`
		NombreUnidad    string `json:"NombreUnidad"`
		DireccionUnidad string `json:"DireccionUnidad"`
		ComunaUnidad    string `json:"ComunaUnidad"`
		RegionUnidad    string `json:"RegionUnidad"`
	} `json:"Comprador"`
	Items *struct {
		Cantidad int    `json:"Cantidad"`
		Listado  []item `json:"Listado"`
	} `json:"Items"`
}

type item struct {
	Correlativo     int     `json:"Correlativo"`
	CodigoProducto  any     `json:"CodigoProducto"`
	CodigoCategoria string  `json:"CodigoCategoria"`
	Categoria       string  `json:"Categoria"`
	NombreProducto  string  `json:"NombreProducto"`
	Descripcion     string  `json:"Descripcion"`
	UnidadMedida    string  `json:"UnidadMedida"`
	Cantidad        float64 `json:"Cantidad"`
}

var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339,
	"2006-01-02",
}

func parseTime(raw *string, loc *time.Location) *time.Time {
	if raw == nil {
		return nil
	}
	value := strings.TrimSpace(*raw)
	if value == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return &t
		}
	}
	return nil
}

func (l licitacion) summary(listedOn time.Time, loc *time.Location) domain.TenderSummary {
	s := domain.TenderSummary{
		ID:              strings.TrimSpace(l.CodigoExterno),
		Title:           strings.TrimSpace(l.Nombre),
		Description:     strings.TrimSpace(l.Descripcion),
		StateCode:       l.CodigoEstado,
		EstimatedAmount: l.MontoEstimado,
		ClosesAt:        parseTime(l.FechaCierre, loc),
	}

	if l.Fechas != nil {
		if published := parseTime(l.Fechas.FechaPublicacion, loc); published != nil {
			s.PublishedAt = *published
		}
		if s.ClosesAt == nil {
			s.ClosesAt = parseTime(l.Fechas.FechaCierre, loc)
		}
	}
	if s.PublishedAt.IsZero() {
		s.PublishedAt = listedOn
	}

	if l.Comprador != nil {
		s.Buyer = domain.Buyer{
			Organization: strings.TrimSpace(l.Comprador.NombreOrganismo),
			Unit:         strings.TrimSpace(l.Comprador.NombreUnidad),
			Address:      strings.TrimSpace(l.Comprador.DireccionUnidad),
			Commune:      strings.TrimSpace(l.Comprador.ComunaUnidad),
			Region:       strings.TrimSpace(l.Comprador.RegionUnidad),
		}
	}

	return s
}

func (l licitacion) detail(raw json.RawMessage, listedOn time.Time, loc *time.Location) domain.TenderDetail {
	d := domain.TenderDetail{
		TenderSummary: l.summary(listedOn, loc),
		Raw:           raw,
	}
	if l.Items == nil {
		return d
	}
	for _, it := range l.Items.Listado {
		d.Items = append(d.Items, domain.Item{
			Line:         it.Correlativo,
			ProductCode:  stringify(it.CodigoProducto),
			CategoryCode: it.CodigoCategoria,
			Category:     it.Categoria,
			ProductName:  strings.TrimSpace(it.NombreProducto),
			Description:  strings.TrimSpace(it.Descripcion),
			Unit:         it.UnidadMedida,
			Quantity:     it.Cantidad,
		})
	}
	return d
}

// stringify accepts product codes sent either as numbers or strings.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}
