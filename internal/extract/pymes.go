package extract

import (
	"strings"

	"go.uber.org/zap"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/leadgen-mx/internal/fetch"
	"github.com/sells-group/leadgen-mx/internal/model"
)

// PymesOrgMx parses pymes.org.mx listing pages. The markup is a plain
// table-style directory with labeled rows, so extraction leans on
// label text rather than stable class names.
type PymesOrgMx struct{}

func (p *PymesOrgMx) Source() model.Source { return model.SourcePymesOrgMx }

func (p *PymesOrgMx) Extract(doc *fetch.Document, pageURL string) []model.CandidateLead {
	gq, err := parseHTML(doc)
	if err != nil {
		zap.L().Warn("pymes: malformed page", zap.String("url", pageURL), zap.Error(err))
		return nil
	}

	var leads []model.CandidateLead
	gq.Find("div.empresa, div.listing-row").Each(func(_ int, entry *goquery.Selection) {
		name := CollapseWhitespace(entry.Find("h2 a, h2, .empresa-nombre").First().Text())
		if name == "" {
			return
		}

		phone := NormalizePhone(entry.Find(`a[href^="tel:"]`).First().AttrOr("href", ""))
		address := ""
		entry.Find("p, li, span").EachWithBreak(func(_ int, field *goquery.Selection) bool {
			label := CollapseWhitespace(field.Find("strong, b").First().Text())
			switch label {
			case "Teléfono:", "Tel:":
				if phone == "" {
					phone = NormalizePhone(field.Text())
				}
			case "Dirección:", "Domicilio:":
				if address == "" {
					text := CollapseWhitespace(field.Text())
					address = CollapseWhitespace(strings.TrimPrefix(text, label))
				}
			}
			return true
		})
		if address == "" {
			address = CollapseWhitespace(entry.Find(".direccion, address").First().Text())
		}
		if phone == "" && address == "" {
			return
		}

		rawEntry, _ := entry.Html()

		leads = append(leads, model.CandidateLead{
			CompanyName: name,
			Phone:       phone,
			Email:       FirstEmail(rawEntry),
			Website:     entry.Find(`a[rel="nofollow"][target="_blank"], a.sitio`).First().AttrOr("href", ""),
			Address:     address,
			Category:    CollapseWhitespace(entry.Find(".categoria, .rubro").First().Text()),
			SourceURL:   pageURL,
		})
	})
	return leads
}

func (p *PymesOrgMx) HasNextPage(doc *fetch.Document) bool {
	gq, err := parseHTML(doc)
	if err != nil {
		return false
	}
	return nextPageIndicator(gq)
}
