package config

const (
	categoryGeotech    = "Ingeniería, Geotecnia y Laboratorio"
	categoryInspection = "Inspección Técnica de Obras"
	categoryStructures = "Estructuras"
	categorySurveying  = "Topografía"
	categoryEnviron    = "Medio Ambiente"
	categoryPavements  = "Pavimentos"
	categoryConsulting = "Consultoría"
)

// defaultKeywords is the built-in taxonomy. Short acronyms are strict so they only match whole words.
func defaultKeywords() []KeywordConfig {
	return []KeywordConfig{
		{Phrase: "geotecnia", Category: categoryGeotech},
		{Phrase: "geotécnico", Category: categoryGeotech},
		{Phrase: "mecánica de suelos", Category: categoryGeotech},
		{Phrase: "laboratorio de materiales", Category: categoryGeotech},
		{Phrase: "ensayo de materiales", Category: categoryGeotech},
		{Phrase: "ensayos de laboratorio", Category: categoryGeotech},
		{Phrase: "sondaje", Category: categoryGeotech},
		{Phrase: "calicata", Category: categoryGeotech},
		{Phrase: "control de calidad", Category: categoryGeotech},

		{Phrase: "inspección técnica", Category: categoryInspection},
		{Phrase: "ITO", Category: categoryInspection, Strict: true},
		{Phrase: "ATO", Category: categoryInspection, Strict: true},
		{Phrase: "AIF", Category: categoryInspection, Strict: true},
		{Phrase: "asesoría a la inspección", Category: categoryInspection},

		{Phrase: "cálculo estructural", Category: categoryStructures},
		{Phrase: "revisión estructural", Category: categoryStructures},
		{Phrase: "diagnóstico estructural", Category: categoryStructures},
		{Phrase: "estructuras", Category: categoryStructures},

		{Phrase: "topografía", Category: categorySurveying},
		{Phrase: "levantamiento topográfico", Category: categorySurveying},
		{Phrase: "aerofotogrametría", Category: categorySurveying},

		{Phrase: "impacto ambiental", Category: categoryEnviron},
		{Phrase: "EIA", Category: categoryEnviron, Strict: true},
		{Phrase: "DIA ambiental", Category: categoryEnviron},
		{Phrase: "monitoreo ambiental", Category: categoryEnviron},

		{Phrase: "pavimento", Category: categoryPavements},
		{Phrase: "IRI", Category: categoryPavements, Strict: true},
		{Phrase: "deflectometría", Category: categoryPavements},
		{Phrase: "auscultación", Category: categoryPavements},

		{Phrase: "consultoría", Category: categoryConsulting},
		{Phrase: "estudio de ingeniería", Category: categoryConsulting},
		{Phrase: "asesoría técnica", Category: categoryConsulting},
	}
}

func defaultExclusions() []string {
	return []string{
		"dental",
		"examen médico",
		"odontológ",
		"alimentación",
		"vestuario",
		"medicamentos",
		"insumos médicos",
		"servicio de aseo",
	}
}
