package portales

import (
	"testing"

	"golang.org/x/net/html"
)

func parseFixture(t *testing.T, fixture string) *html.Node {
	t.Helper()
	doc, err := parseHTML([]byte(fixture))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func TestParseApplyFormLabelFor(t *testing.T) {
	doc := parseFixture(t, `<html><body><form>
		<label for="q1">¿Por qué te interesa el cargo?</label>
		<textarea id="q1" name="q1"></textarea>
		<button id="sendApplication" class="job-apply-btn">Enviar postulación</button>
	</form></body></html>`)

	info := ParseApplyForm(doc, doc)
	if len(info.Questions) != 1 {
		t.Fatalf("questions = %d, want 1", len(info.Questions))
	}
	q := info.Questions[0]
	if q.Label != "¿Por qué te interesa el cargo?" {
		t.Errorf("label = %q", q.Label)
	}
	if q.Field != "q1" {
		t.Errorf("field = %q", q.Field)
	}
	if !info.HasSubmit {
		t.Error("HasSubmit = false, want true")
	}
}

func TestParseApplyFormPrevSiblingLabel(t *testing.T) {
	doc := parseFixture(t, `<html><body><form>
		<p>¿Cuántas horas de práctica buscas?</p><textarea name="hrs"></textarea>
	</form></body></html>`)

	info := ParseApplyForm(doc, doc)
	if len(info.Questions) != 1 {
		t.Fatalf("questions = %d, want 1", len(info.Questions))
	}
	if got := info.Questions[0].Label; got != "¿Cuántas horas de práctica buscas?" {
		t.Errorf("label = %q", got)
	}
}

func TestParseApplyFormWrapperLabel(t *testing.T) {
	doc := parseFixture(t, `<html><body><form>
		<div class="form-group"><span>Comenta tu experiencia</span><div><textarea name="exp"></textarea></div></div>
	</form></body></html>`)

	info := ParseApplyForm(doc, doc)
	if len(info.Questions) != 1 {
		t.Fatalf("questions = %d, want 1", len(info.Questions))
	}
	if got := info.Questions[0].Label; got != "Comenta tu experiencia" {
		t.Errorf("label = %q", got)
	}
}

func TestParseApplyFormFallbackLabel(t *testing.T) {
	doc := parseFixture(t, `<html><body><form><textarea name="x"></textarea></form></body></html>`)
	info := ParseApplyForm(doc, doc)
	if got := info.Questions[0].Label; got != "Pregunta 1" {
		t.Errorf("label = %q, want positional fallback", got)
	}
}

func TestParseApplyFormSelectAndSalary(t *testing.T) {
	doc := parseFixture(t, `<html><body><form>
		<label for="jor">Jornada</label>
		<select id="jor" name="jornada">
			<option>-- Seleccione --</option>
			<option>Full time</option>
			<option>Part time</option>
		</select>
		<input type="text" name="pretension_renta" placeholder="Sólo números">
		<input type="submit" name="apply" value="Enviar postulación">
	</form></body></html>`)

	info := ParseApplyForm(doc, doc)
	if len(info.Questions) != 1 {
		t.Fatalf("questions = %d, want 1", len(info.Questions))
	}
	q := info.Questions[0]
	if q.Kind != FieldSelect {
		t.Errorf("kind = %v, want FieldSelect", q.Kind)
	}
	if len(q.Options) != 3 {
		t.Errorf("options = %v", q.Options)
	}
	if info.SalaryField != "pretension_renta" {
		t.Errorf("SalaryField = %q", info.SalaryField)
	}
	if !info.HasSubmit {
		t.Error("HasSubmit = false")
	}
}

func TestParseApplyFormRadioGroup(t *testing.T) {
	doc := parseFixture(t, `<html><body><form><div class="form-group">
		<label>¿Disponibilidad inmediata?</label>
		<label for="r1">Sí</label><input type="radio" id="r1" name="disp" value="si">
		<label for="r2">No</label><input type="radio" id="r2" name="disp" value="no">
	</div></form></body></html>`)

	info := ParseApplyForm(doc, doc)
	if len(info.Questions) != 1 {
		t.Fatalf("questions = %d, want 1", len(info.Questions))
	}
	q := info.Questions[0]
	if q.Kind != FieldRadio {
		t.Errorf("kind = %v, want FieldRadio", q.Kind)
	}
	if len(q.Options) != 2 {
		t.Errorf("options = %v", q.Options)
	}
}

func TestClassifyQuestion(t *testing.T) {
	cases := []struct {
		label string
		want  FieldKind
	}{
		{"¿Cuál es tu pretensión de renta?", FieldSalary},
		{"Ingresa tu RUT", FieldNationalID},
		{"Teléfono de contacto", FieldPhone},
		{"Nombre completo", FieldName},
		{"¿Cuántos años de experiencia tienes?", FieldYears},
		{"Cuéntanos sobre ti", FieldText},
	}
	for _, tc := range cases {
		if got := ClassifyQuestion(tc.label); got != tc.want {
			t.Errorf("ClassifyQuestion(%q) = %v, want %v", tc.label, got, tc.want)
		}
	}
}

func TestClassifyRuleOrder(t *testing.T) {
	// Matches both salary and years; salary is the earlier rule.
	if got := ClassifyQuestion("Renta esperada según años de experiencia"); got != FieldSalary {
		t.Errorf("ClassifyQuestion() = %v, want FieldSalary (first rule wins)", got)
	}
}
