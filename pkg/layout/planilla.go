package layout

import fw "github.com/yurifrl/planillas/pkg/fixedwidth"

// Planilla is the layout of a contribution return (planilla) file: one
// header record followed by the aporte, mora and total lines.
type Planilla struct {
	// Reorder picks the meaningful lines of files with at least
	// ReorderFrom lines; the remaining lines follow in order.
	Reorder     []int     `yaml:"reorder"`
	ReorderFrom int       `yaml:"reorder_from"`
	MinLines    int       `yaml:"min_lines"`
	Header      fw.Schema `yaml:"header"`
	Aporte      fw.Schema `yaml:"aporte"`
	Mora        fw.Schema `yaml:"mora"`
	Total       fw.Schema `yaml:"total"`
}

// Schemas returns the schemas of the first four lines, in line order.
func (p Planilla) Schemas() []fw.Schema {
	return []fw.Schema{p.Header, p.Aporte, p.Mora, p.Total}
}

// Columns lists every field name in output order.
func (p Planilla) Columns() []string {
	var cols []string
	for _, s := range p.Schemas() {
		for _, f := range s {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// DefaultPlanilla is the PILA planilla layout for the ESAP contribution.
func DefaultPlanilla() Planilla {
	return Planilla{
		Reorder:     []int{0, 2, 4, 6},
		ReorderFrom: 7,
		MinLines:    4,
		Header: fw.Schema{
			{Name: "Numero Del Registro", Start: 5, End: 6},
			{Name: "Código de Formato", Start: 6, End: 7},
			{Name: "Código Formato", Start: 7, End: 8},
			{Name: "No. Identificación ESAP", Start: 8, End: 17, Trim: true},
			{Name: "Dígito Verificación", Start: 24, End: 25},
			{Name: "Nombre Aportante", Start: 25, End: 69, Trim: true},
			{Name: "Tipo Documento Aportante", Start: 225, End: 227, Trim: true},
			{Name: "No. Identificación Aportante", Start: 227, End: 236, Trim: true},
			{Name: "Dígito Verificación Aportante", Start: 243, End: 244},
			{Name: "Tipo de Aportante", Start: 244, End: 246, ZeroStrip: true},
			{Name: "Dirección", Start: 246, End: 286, Trim: true},
			{Name: "Código Ciudad", Start: 286, End: 289, Trim: true},
			{Name: "Código Dpto", Start: 289, End: 291, Trim: true},
			{Name: "Teléfono", Start: 294, End: 308, Trim: true, ZeroStrip: true},
			{Name: "Correo", Start: 311, End: 371, Trim: true},
			{Name: "Periodo de Pago", Start: 371, End: 378, Trim: true},
			{Name: "Tipo de Planilla", Start: 378, End: 379},
			{Name: "Fecha de Pago Planilla", Start: 379, End: 389, Trim: true},
			{Name: "Fecha de Pago", Start: 389, End: 399, Trim: true},
			{Name: "No. Planilla Asociada", Start: 399, End: 407, Trim: true},
			{Name: "Número de Radicación", Start: 409, End: 419, Trim: true},
			{Name: "Forma de Presentación", Start: 419, End: 420},
			{Name: "Código Sucursal", Start: 420, End: 423, Trim: true},
			{Name: "Nombre Sucursal", Start: 430, End: 465, Trim: true},
			{Name: "Total Empleados", Start: 470, End: 475, ZeroStrip: true},
			{Name: "Total Afiliados", Start: 475, End: 480, ZeroStrip: true},
			{Name: "Código Operador", Start: 480, End: 482, Trim: true},
			{Name: "Modalidad Planilla", Start: 482, End: 483},
			{Name: "Días Mora", Start: 483, End: 488, ZeroStrip: true},
			{Name: "Clase Aportante", Start: 488, End: 489},
			{Name: "Naturaleza Jurídica", Start: 489, End: 490},
			{Name: "Tipo Persona", Start: 490, End: 491},
		},
		Aporte: fw.Schema{
			{Name: "IBC", Start: 6, End: 19, ZeroStrip: true},
			{Name: "Aporte Obligatorio", Start: 19, End: 33, ZeroStrip: true},
		},
		Mora: fw.Schema{
			{Name: "Mora Aportes", Start: 14, End: 23, ZeroStrip: true},
		},
		Total: fw.Schema{
			{Name: "Total Aportes", Start: 6, End: 20, ZeroStrip: true},
		},
	}
}
