package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Profile is the candidate data used to personalize generated answers.
// The JSON schema matches the profile file the user maintains by hand.
type Profile struct {
	NombreCompleto     string        `json:"nombre_completo"`
	Email              string        `json:"email"`
	Telefono           string        `json:"telefono"`
	RUT                string        `json:"rut"`
	Ubicacion          string        `json:"ubicacion"`
	ResumenProfesional string        `json:"resumen_profesional"`
	Habilidades        []string      `json:"habilidades"`
	Educacion          []Educacion   `json:"educacion"`
	ExperienciaLaboral []Experiencia `json:"experiencia_laboral"`
	Preferencias       Preferencias  `json:"preferencias"`
}

type Educacion struct {
	Titulo      string `json:"titulo"`
	Institucion string `json:"institucion"`
	Estado      string `json:"estado"`
}

type Experiencia struct {
	Cargo       string `json:"cargo"`
	Empresa     string `json:"empresa"`
	Periodo     string `json:"periodo"`
	Descripcion string `json:"descripcion"`
}

type Preferencias struct {
	Disponibilidad string `json:"disponibilidad"`
	RentaEsperada  int    `json:"renta_esperada"`
}

// LoadProfile reads and validates the candidate profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if p.NombreCompleto == "" {
		return nil, fmt.Errorf("profile %s: nombre_completo is required", path)
	}
	return &p, nil
}

// PromptContext renders the profile as the persona block given to the
// generation endpoint. Spanish on purpose: answers are written in Spanish.
func (p *Profile) PromptContext() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nombre: %s\n", p.NombreCompleto)
	if p.Ubicacion != "" {
		fmt.Fprintf(&b, "Ubicación: %s\n", p.Ubicacion)
	}
	if p.ResumenProfesional != "" {
		fmt.Fprintf(&b, "Resumen profesional: %s\n", p.ResumenProfesional)
	}
	if len(p.Habilidades) > 0 {
		fmt.Fprintf(&b, "Habilidades: %s\n", strings.Join(p.Habilidades, ", "))
	}
	for _, e := range p.Educacion {
		fmt.Fprintf(&b, "Educación: %s, %s (%s)\n", e.Titulo, e.Institucion, e.Estado)
	}
	for _, x := range p.ExperienciaLaboral {
		fmt.Fprintf(&b, "Experiencia: %s en %s (%s). %s\n", x.Cargo, x.Empresa, x.Periodo, x.Descripcion)
	}
	if p.Preferencias.Disponibilidad != "" {
		fmt.Fprintf(&b, "Disponibilidad: %s\n", p.Preferencias.Disponibilidad)
	}
	if p.Preferencias.RentaEsperada > 0 {
		fmt.Fprintf(&b, "Renta esperada: %d\n", p.Preferencias.RentaEsperada)
	}
	return b.String()
}
