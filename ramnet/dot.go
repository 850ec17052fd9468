package ramnet

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/awalterschulze/gographviz"
	"gorgonia.org/tensor"
)

type dotNode struct {
	ID    string
	Name  string
	Step  int
	Shape tensor.Shape
}

// ToDot renders the unrolled glimpse pipeline: one retina, glimpse, core, location and baseline node per time step,
// and the classifier reading the last hidden state. The *RAM must have been initialized.
func (d *RAM) ToDot() string {
	g := gographviz.NewGraph()
	if err := g.SetName("G"); err != nil {
		panic(err)
	}
	g.SetDir(true)

	var buf bytes.Buffer
	add := func(n dotNode) {
		tmpl.Execute(&buf, n)
		attrs := map[string]string{
			"fontname": "Monaco",
			"shape":    "none",
			"label":    buf.String(),
		}
		g.AddNode("G", n.ID, attrs)
		buf.Reset()
	}
	edge := func(from, to string) { g.AddEdge(from, to, true, nil) }

	add(dotNode{ID: "images", Name: "Images", Step: -1, Shape: d.images.Shape()})
	add(dotNode{ID: "h0", Name: "Hidden", Step: -1, Shape: d.h0.Shape()})
	add(dotNode{ID: "l0", Name: "Location", Step: -1, Shape: d.l0.Shape()})

	h, l := "h0", "l0"
	glimpseShape := tensor.Shape{d.BatchSize, d.retina.Features()}
	for t := 0; t < d.Steps; t++ {
		retina := fmt.Sprintf("retina%d", t)
		glimpse := fmt.Sprintf("glimpse%d", t)
		core := fmt.Sprintf("core%d", t)
		loc := fmt.Sprintf("location%d", t)
		base := fmt.Sprintf("baseline%d", t)

		add(dotNode{ID: retina, Name: "Retina", Step: t, Shape: glimpseShape})
		add(dotNode{ID: glimpse, Name: "Glimpse", Step: t, Shape: tensor.Shape{d.BatchSize, d.GlimpseSize()}})
		add(dotNode{ID: core, Name: "Core", Step: t, Shape: d.h0.Shape()})
		add(dotNode{ID: loc, Name: "Location", Step: t, Shape: d.locations[t].Shape()})
		add(dotNode{ID: base, Name: "Baseline", Step: t, Shape: d.baselines[t].Shape()})

		edge("images", retina)
		edge(l, retina)
		edge(retina, glimpse)
		edge(l, glimpse)
		edge(glimpse, core)
		edge(h, core)
		edge(core, loc)
		edge(core, base)
		h, l = core, loc
	}
	add(dotNode{ID: "action", Name: "Action", Step: d.Steps - 1, Shape: d.logProbs.Shape()})
	edge(h, "action")
	return g.String()
}

const tmplRaw = `<
<TABLE BORDER="0" CELLBORDER="1" CELLSPACING="0">
<TR><TD COLSPAN="2">{{.Name}}</TD></TR>
{{if ge .Step 0}}<TR><TD>Step</TD><TD>{{.Step}}</TD></TR>{{end}}
<TR><TD>Shape</TD><TD>{{.Shape}}</TD></TR>
</TABLE>
>
`

var tmpl *template.Template

func init() {
	tmpl = template.Must(template.New("name").Parse(tmplRaw))
}
