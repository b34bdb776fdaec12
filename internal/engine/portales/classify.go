package portales

import "strings"

// classifyRule maps label keywords to a field kind, checked in order.
// First match wins so the more specific kinds come before FieldText.
type classifyRule struct {
	kind     FieldKind
	keywords []string
}

var classifyRules = []classifyRule{
	{FieldSalary, []string{"renta", "sueldo", "pretensión", "pretension", "salario", "salary", "expectativa"}},
	{FieldNationalID, []string{"rut", "cédula", "cedula", "documento de identidad"}},
	{FieldPhone, []string{"teléfono", "telefono", "celular", "fono", "phone"}},
	{FieldName, []string{"nombre completo", "nombre y apellido"}},
	{FieldYears, []string{"años de experiencia", "anos de experiencia", "cuántos años", "cuantos años"}},
}

// ClassifyQuestion decides what kind of field a label describes. Structural
// kinds (select, radio) come from the form parser; everything here is
// label-based and defaults to free text.
func ClassifyQuestion(label string) FieldKind {
	l := strings.ToLower(label)
	for _, rule := range classifyRules {
		for _, kw := range rule.keywords {
			if strings.Contains(l, kw) {
				return rule.kind
			}
		}
	}
	return FieldText
}
