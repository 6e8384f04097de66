package bodega

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/bodega-agent/internal/domain/entity"
)

// Rule asocia un intent con palabras clave. Coincide si alguna aparece como subcadena del prompt.
type Rule struct {
	Intent   entity.Intent
	Keywords []string
}

// DefaultRules reglas en orden de prioridad; gana la primera que coincide.
// Las palabras en inglés son frases: "inventory", "entry" y "exit" sueltas aparecen en SQL
// de passthrough (bodega_inventory, kind = 'exit') y no deben capturarlo.
// El orden de las tres primeras no debe alterarse: un prompt puede contener varias palabras clave.
func DefaultRules() []Rule {
	return []Rule{
		{Intent: entity.IntentListInventory, Keywords: []string{"inventario", "show inventory", "list inventory", "full inventory"}},
		{Intent: entity.IntentLowStockQuery, Keywords: []string{"stock bajo", "low stock"}},
		{Intent: entity.IntentRegisterEntry, Keywords: []string{"entrada", "register entry", "register an entry", "stock entry"}},
		{Intent: entity.IntentRegisterExit, Keywords: []string{"salida", "register exit", "register an exit", "stock exit"}},
		{Intent: entity.IntentGenerateReport, Keywords: []string{"reporte", "movimientos", "movement report"}},
	}
}

// Classifier clasifica prompts en un Intent y extrae los campos necesarios para el SQL.
// Es una función total: lo que no coincide con ninguna regla es raw_passthrough.
type Classifier struct {
	rules []Rule
	fold  cases.Caser
}

// NewClassifier construye el clasificador. Sin reglas usa DefaultRules.
func NewClassifier(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	c := &Classifier{fold: cases.Fold()}
	for _, r := range rules {
		folded := Rule{Intent: r.Intent, Keywords: make([]string, len(r.Keywords))}
		for i, k := range r.Keywords {
			folded.Keywords[i] = c.fold.String(norm.NFC.String(k))
		}
		c.rules = append(c.rules, folded)
	}
	return c
}

// Classify aplica las reglas en orden sin distinguir mayúsculas.
func (c *Classifier) Classify(prompt string) entity.Classification {
	text := norm.NFC.String(prompt)
	folded := c.fold.String(text)
	for _, r := range c.rules {
		for _, k := range r.Keywords {
			if strings.Contains(folded, k) {
				return entity.Classification{
					Intent: r.Intent,
					Fields: ExtractFields(text),
					Prompt: prompt,
				}
			}
		}
	}
	return entity.Classification{Intent: entity.IntentRawPassthrough, Prompt: prompt}
}

// Formato "Clave: valor" del formulario de registro del panel (una clave por línea o separadas por comas).
// Clave y valor no cruzan saltos de línea: un campo vacío queda vacío.
// Una coma seguida de dígito es parte del valor ("1,50") y el traductor la rechaza.
var keyValueRe = regexp.MustCompile(`(?i)\b(stock[ \t]+m[ií]nimo|minimum[ \t]+stock|c[oó]digo|code|cantidad|quantity|qty|stock|motivo|reason|nombre|name|descripci[oó]n|description|categor[ií]a|category|precio|price|ubicaci[oó]n|location)[ \t]*[:=][ \t]*((?:[^\n,;]|,\d)*)`)

// Formas libres: "producto A", "product A", "código A", "quantity 5", "5 unidades".
var (
	inlineCodeRe     = regexp.MustCompile(`(?i)\b(?:producto|product|c[oó]digo|code)[ \t]+(?:con[ \t]+c[oó]digo[ \t]+|code[ \t]+)?["']?([A-Za-z0-9][A-Za-z0-9_\-.]*)`)
	inlineQuantityRe = regexp.MustCompile(`(?i)\b(?:cantidad|quantity|qty)[ \t]+(?:de[ \t]+|of[ \t]+)?([^\s,;]+)`)
	unitsQuantityRe  = regexp.MustCompile(`(?i)\b(\d+)[ \t]+(?:unidades|units|uds?)\b`)
)

// ExtractFields extrae código, cantidad, motivo y atributos del producto de un texto libre.
// Los valores se devuelven sin validar. Si el formulario trae la clave vacía el campo
// queda vacío; las formas libres solo se buscan cuando la clave no aparece.
func ExtractFields(text string) entity.Fields {
	var f entity.Fields
	declared := make(map[*string]bool)
	for _, m := range keyValueRe.FindAllStringSubmatch(text, -1) {
		target := fieldFor(&f, normalizeKey(m[1]))
		if target == nil {
			continue
		}
		declared[target] = true
		if value := strings.TrimSpace(m[2]); value != "" && *target == "" {
			*target = value
		}
	}
	if !declared[&f.Code] {
		if m := inlineCodeRe.FindStringSubmatch(text); m != nil {
			f.Code = strings.TrimRight(m[1], ".")
		}
	}
	if !declared[&f.Quantity] {
		if m := inlineQuantityRe.FindStringSubmatch(text); m != nil {
			f.Quantity = strings.TrimRight(m[1], ".,;")
		} else if m := unitsQuantityRe.FindStringSubmatch(text); m != nil {
			f.Quantity = m[1]
		}
	}
	return f
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.Join(strings.Fields(k), " "))
	r := strings.NewReplacer("ó", "o", "í", "i")
	return r.Replace(k)
}

func fieldFor(f *entity.Fields, key string) *string {
	switch key {
	case "codigo", "code":
		return &f.Code
	case "cantidad", "quantity", "qty", "stock":
		return &f.Quantity
	case "motivo", "reason":
		return &f.Reason
	case "nombre", "name":
		return &f.Name
	case "descripcion", "description":
		return &f.Description
	case "categoria", "category":
		return &f.Category
	case "precio", "price":
		return &f.Price
	case "stock minimo", "minimum stock":
		return &f.Minimum
	case "ubicacion", "location":
		return &f.Location
	}
	return nil
}
