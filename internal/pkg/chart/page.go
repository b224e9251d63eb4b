package chart

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/components"
)

// Page represents a page containing multiple drawn charts.
//
// A [Page] knows how to [Page.Render] as HTML.
type Page struct {
	Title   string
	Drawers []*EChartsDrawer
}

// NewPage creates a new page with the given title.
func NewPage(title string) *Page {
	return &Page{
		Title: title,
	}
}

// AddChart adds a drawer to the page. Its last drawn chart is rendered.
func (p *Page) AddChart(d *EChartsDrawer) {
	p.Drawers = append(p.Drawers, d)
}

// Render writes the page HTML to the given writer.
//
// Drawers which have not drawn anything yet are skipped.
func (p *Page) Render(w io.Writer) error {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.SetPageTitle(p.Title)

	var charters []components.Charter
	for _, d := range p.Drawers {
		if c := d.Charter(); c != nil {
			charters = append(charters, c)
		}
	}

	page.AddCharts(charters...)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("rendering page %q: %w", p.Title, err)
	}

	return nil
}
