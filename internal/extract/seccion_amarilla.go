package extract

import (
	"go.uber.org/zap"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/leadgen-mx/internal/fetch"
	"github.com/sells-group/leadgen-mx/internal/model"
)

// SeccionAmarilla parses seccionamarilla.com.mx result pages. The site
// renders results as cards with the contact block in data attributes.
type SeccionAmarilla struct{}

func (s *SeccionAmarilla) Source() model.Source { return model.SourceSeccionAmarilla }

func (s *SeccionAmarilla) Extract(doc *fetch.Document, pageURL string) []model.CandidateLead {
	gq, err := parseHTML(doc)
	if err != nil {
		zap.L().Warn("seccion_amarilla: malformed page", zap.String("url", pageURL), zap.Error(err))
		return nil
	}

	var leads []model.CandidateLead
	gq.Find("div.card-result, li.resultado").Each(func(_ int, entry *goquery.Selection) {
		name := CollapseWhitespace(entry.Find(".card-title, h3.nombre").First().Text())
		if name == "" {
			return
		}

		phone := NormalizePhone(entry.AttrOr("data-phone", ""))
		if phone == "" {
			phone = NormalizePhone(entry.Find(`a[href^="tel:"]`).First().AttrOr("href", ""))
		}
		if phone == "" {
			phone = NormalizePhone(entry.Find(".telefono").First().Text())
		}
		address := CollapseWhitespace(entry.Find(".card-address, .domicilio").First().Text())
		if phone == "" && address == "" {
			return
		}

		rawEntry, _ := entry.Html()

		leads = append(leads, model.CandidateLead{
			CompanyName: name,
			Phone:       phone,
			Email:       FirstEmail(rawEntry),
			Website:     entry.Find("a.website, a.sitio-web").First().AttrOr("href", ""),
			Address:     address,
			Category:    CollapseWhitespace(entry.Find(".card-category, .giro").First().Text()),
			SourceURL:   pageURL,
		})
	})
	return leads
}

func (s *SeccionAmarilla) HasNextPage(doc *fetch.Document) bool {
	gq, err := parseHTML(doc)
	if err != nil {
		return false
	}
	return nextPageIndicator(gq)
}
