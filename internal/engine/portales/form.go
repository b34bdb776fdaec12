package portales

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// FormInfo is what the parser discovers inside an application form.
type FormInfo struct {
	Questions   []Question
	SalaryField string // name of the salary input, "" when absent
	HasSubmit   bool
}

// wrapper classes the portals put around a field and its label.
var fieldWrapperClasses = []string{
	"form-group", "field", "mb-3", "form-item", "form-textarea",
	"field-wrapper", "textarea-container",
}

// ParseApplyForm walks a form subtree and extracts the answerable fields.
// doc is the whole document (label[for] lookups need it); root is the form
// element or any container known to hold the fields.
func ParseApplyForm(doc, root *html.Node) *FormInfo {
	info := &FormInfo{}

	for i, ta := range findElements(root, "textarea") {
		label := resolveLabel(doc, ta)
		if label == "" {
			label = placeholderLabel(i)
		}
		q := Question{
			Label: label,
			Index: i,
			Field: fieldName(ta),
			Kind:  ClassifyQuestion(label),
		}
		info.Questions = append(info.Questions, q)
	}

	for _, sel := range findElements(root, "select") {
		label := resolveLabel(doc, sel)
		if label == "" {
			label = fieldName(sel)
		}
		var options []string
		for _, opt := range findElements(sel, "option") {
			if text := textContent(opt); text != "" {
				options = append(options, text)
			}
		}
		if len(options) == 0 {
			continue
		}
		info.Questions = append(info.Questions, Question{
			Label:   label,
			Index:   len(info.Questions),
			Field:   fieldName(sel),
			Kind:    FieldSelect,
			Options: options,
		})
	}

	// Radio groups share a name; each input contributes one option.
	radios := map[string][]string{}
	radioLabels := map[string]string{}
	for _, in := range findElements(root, "input") {
		switch strings.ToLower(getAttr(in, "type")) {
		case "radio":
			name := fieldName(in)
			if name == "" {
				continue
			}
			option := resolveLabel(doc, in)
			if option == "" {
				option = getAttr(in, "value")
			}
			if option != "" {
				radios[name] = append(radios[name], option)
			}
			if _, ok := radioLabels[name]; !ok {
				if wrap := closestAncestor(in, fieldWrapperClasses...); wrap != nil {
					radioLabels[name] = wrapperLabel(wrap)
				}
			}
		case "submit":
			info.HasSubmit = true
		case "text", "number", "":
			if info.SalaryField == "" && isSalaryInput(in) {
				info.SalaryField = fieldName(in)
			}
		}
	}
	for name, options := range radios {
		label := radioLabels[name]
		if label == "" {
			label = name
		}
		info.Questions = append(info.Questions, Question{
			Label:   label,
			Index:   len(info.Questions),
			Field:   name,
			Kind:    FieldRadio,
			Options: options,
		})
	}

	for _, btn := range findElements(root, "button") {
		t := strings.ToLower(getAttr(btn, "type"))
		if t == "submit" || t == "" || getAttr(btn, "id") == "sendApplication" {
			info.HasSubmit = true
		}
	}

	return info
}

// resolveLabel finds the human-readable label of a field, trying the
// explicit association first and falling back to nearby markup.
func resolveLabel(doc, field *html.Node) string {
	if id := getAttr(field, "id"); id != "" {
		if lbl := findFirst(doc, func(n *html.Node) bool {
			return n.Data == "label" && getAttr(n, "for") == id
		}); lbl != nil {
			if text := textContent(lbl); text != "" {
				return text
			}
		}
	}
	if prev := prevElement(field); prev != nil {
		if text := textContent(prev); text != "" && len(text) < 300 {
			return text
		}
	}
	if wrap := closestAncestor(field, fieldWrapperClasses...); wrap != nil {
		if text := wrapperLabel(wrap); text != "" {
			return text
		}
	}
	return ""
}

// wrapperLabel picks the first label-like element inside a field wrapper.
func wrapperLabel(wrap *html.Node) string {
	for _, tag := range []string{"label", "p", "span", "strong", "b", "h3", "h4", "h5"} {
		for _, n := range findElements(wrap, tag) {
			if text := textContent(n); text != "" {
				return text
			}
		}
	}
	return ""
}

func fieldName(n *html.Node) string {
	if name := getAttr(n, "name"); name != "" {
		return name
	}
	return getAttr(n, "id")
}

// isSalaryInput detects the expected-salary field by name or placeholder.
func isSalaryInput(in *html.Node) bool {
	name := strings.ToLower(fieldName(in))
	for _, kw := range []string{"salary", "pretension", "renta"} {
		if strings.Contains(name, kw) {
			return true
		}
	}
	ph := strings.ToLower(getAttr(in, "placeholder"))
	for _, kw := range []string{"número", "numeros", "números", "solo numeros", "sólo números"} {
		if strings.Contains(ph, kw) {
			return true
		}
	}
	return false
}

func placeholderLabel(i int) string {
	return "Pregunta " + strconv.Itoa(i+1)
}
