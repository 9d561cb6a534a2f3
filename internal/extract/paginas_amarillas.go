package extract

import (
	"go.uber.org/zap"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/leadgen-mx/internal/fetch"
	"github.com/sells-group/leadgen-mx/internal/model"
)

// PaginasAmarillas parses paginasamarillas.com.mx listing pages.
type PaginasAmarillas struct{}

func (p *PaginasAmarillas) Source() model.Source { return model.SourcePaginasAmarillas }

func (p *PaginasAmarillas) Extract(doc *fetch.Document, pageURL string) []model.CandidateLead {
	gq, err := parseHTML(doc)
	if err != nil {
		zap.L().Warn("paginas_amarillas: malformed page", zap.String("url", pageURL), zap.Error(err))
		return nil
	}

	var leads []model.CandidateLead
	gq.Find("div.listado-item, article.business-card").Each(func(_ int, entry *goquery.Selection) {
		name := CollapseWhitespace(entry.Find("h2.business-name, h2 a, .titulo-comercio").First().Text())
		if name == "" {
			return
		}

		phone := NormalizePhone(entry.Find(`a[href^="tel:"], .telefono, .phone`).First().AttrOr("href", ""))
		if phone == "" {
			phone = NormalizePhone(entry.Find(".telefono, .phone").First().Text())
		}
		address := CollapseWhitespace(entry.Find("span.address, .direccion").First().Text())
		if phone == "" && address == "" {
			return
		}

		rawEntry, _ := entry.Html()
		website := entry.Find(`a.web, a[data-omniclick="web"]`).First().AttrOr("href", "")
		category := CollapseWhitespace(entry.Find(".categoria, .category").First().Text())

		leads = append(leads, model.CandidateLead{
			CompanyName: name,
			Phone:       phone,
			Email:       FirstEmail(rawEntry),
			Website:     website,
			Address:     address,
			Category:    category,
			SourceURL:   pageURL,
		})
	})
	return leads
}

func (p *PaginasAmarillas) HasNextPage(doc *fetch.Document) bool {
	gq, err := parseHTML(doc)
	if err != nil {
		return false
	}
	return nextPageIndicator(gq)
}
