package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-mx/internal/fetch"
	"github.com/sells-group/leadgen-mx/internal/model"
)

const paginasAmarillasPage = `<html><body>
<div class="listado-item">
  <h2 class="business-name">Taquería El Progreso</h2>
  <a href="tel:+52 55 1234 5678">Llamar</a>
  <span class="address">Av. Insurgentes Sur 1234, CDMX</span>
  <a class="web" href="https://elprogreso.mx">Sitio</a>
  <span class="categoria">Restaurantes</span>
  <p>contacto@elprogreso.mx</p>
</div>
<div class="listado-item">
  <h2 class="business-name">Sin Contacto SA</h2>
  <p>Listado sin teléfono ni dirección.</p>
</div>
<div class="listado-item">
  <span class="address">Calle Falsa 123</span>
</div>
<div class="pagination"><a class="next" href="?page=2">2</a></div>
</body></html>`

func TestPaginasAmarillas_Extract(t *testing.T) {
	e := &PaginasAmarillas{}
	doc := &fetch.Document{HTML: paginasAmarillasPage, StatusCode: 200}

	leads := e.Extract(doc, "https://www.paginasamarillas.com.mx/buscar/restaurantes/p-1")
	require.Len(t, leads, 1)

	lead := leads[0]
	assert.Equal(t, "Taquería El Progreso", lead.CompanyName)
	assert.Equal(t, "5512345678", lead.Phone)
	assert.Equal(t, "contacto@elprogreso.mx", lead.Email)
	assert.Equal(t, "https://elprogreso.mx", lead.Website)
	assert.Equal(t, "Av. Insurgentes Sur 1234, CDMX", lead.Address)
	assert.Equal(t, "Restaurantes", lead.Category)
	assert.Equal(t, "https://www.paginasamarillas.com.mx/buscar/restaurantes/p-1", lead.SourceURL)

	assert.True(t, e.HasNextPage(doc))
}

const seccionAmarillaPage = `<html><body>
<div class="card-result" data-phone="(55) 8765-4321">
  <h3 class="card-title">Ferretería La Central</h3>
  <span class="card-address">Eje Central 45, Col. Centro</span>
  <span class="card-category">Ferreterías</span>
</div>
<li class="resultado">
  <h3 class="nombre">Dentista Sonrisa</h3>
  <a href="tel:8112345678">Tel</a>
  <a class="sitio-web" href="https://sonrisa.dental">web</a>
</li>
<div class="card-result">
  <h3 class="card-title">Solo Nombre</h3>
</div>
</body></html>`

func TestSeccionAmarilla_Extract(t *testing.T) {
	e := &SeccionAmarilla{}
	doc := &fetch.Document{HTML: seccionAmarillaPage, StatusCode: 200}

	leads := e.Extract(doc, "https://www.seccionamarilla.com.mx/resultados/ferreterias/1")
	require.Len(t, leads, 2)

	assert.Equal(t, "Ferretería La Central", leads[0].CompanyName)
	assert.Equal(t, "5587654321", leads[0].Phone)
	assert.Equal(t, "Eje Central 45, Col. Centro", leads[0].Address)
	assert.Equal(t, "Ferreterías", leads[0].Category)

	assert.Equal(t, "Dentista Sonrisa", leads[1].CompanyName)
	assert.Equal(t, "8112345678", leads[1].Phone)
	assert.Equal(t, "https://sonrisa.dental", leads[1].Website)

	// No pagination markup on this page.
	assert.False(t, e.HasNextPage(doc))
}

const pymesPage = `<html><body>
<div class="empresa">
  <h2><a href="/empresa/1">Contadores Unidos</a></h2>
  <p><strong>Teléfono:</strong> 33 2233 4455</p>
  <p><strong>Dirección:</strong> Av. Vallarta 500, Guadalajara</p>
  <p><strong>Giro:</strong> <span class="rubro">Contabilidad</span></p>
  <p>info@contadoresunidos.mx</p>
</div>
<div class="empresa">
  <h2>Sin Datos SA de CV</h2>
  <p>Perfil incompleto</p>
</div>
<a href="?pagina=2">Siguiente</a>
</body></html>`

func TestPymesOrgMx_Extract(t *testing.T) {
	e := &PymesOrgMx{}
	doc := &fetch.Document{HTML: pymesPage, StatusCode: 200}

	leads := e.Extract(doc, "https://www.pymes.org.mx/directorio/contabilidad?pagina=1")
	require.Len(t, leads, 1)

	lead := leads[0]
	assert.Equal(t, "Contadores Unidos", lead.CompanyName)
	assert.Equal(t, "3322334455", lead.Phone)
	assert.Equal(t, "Av. Vallarta 500, Guadalajara", lead.Address)
	assert.Equal(t, "info@contadoresunidos.mx", lead.Email)
	assert.Equal(t, "Contabilidad", lead.Category)

	assert.True(t, e.HasNextPage(doc))
}

func TestRegistry_UnknownSource(t *testing.T) {
	r := DefaultRegistry()
	doc := &fetch.Document{HTML: paginasAmarillasPage, StatusCode: 200}

	leads := r.Extract(doc, model.Source("mystery_directory"), "https://example.mx")
	assert.Nil(t, leads)
	assert.False(t, r.HasNextPage(doc, model.Source("mystery_directory")))
}

func TestRegistry_Dispatch(t *testing.T) {
	r := DefaultRegistry()
	doc := &fetch.Document{HTML: paginasAmarillasPage, StatusCode: 200}

	leads := r.Extract(doc, model.SourcePaginasAmarillas, "https://example.mx")
	assert.Len(t, leads, 1)
	assert.True(t, r.HasNextPage(doc, model.SourcePaginasAmarillas))
}

func TestRegistry_Parse(t *testing.T) {
	r := DefaultRegistry()
	doc := &fetch.Document{HTML: paginasAmarillasPage, StatusCode: 200}

	result := r.Parse(doc, model.SourcePaginasAmarillas, "https://example.mx")
	assert.Len(t, result.Leads, 1)
	assert.True(t, result.HasNextPage)

	result = r.Parse(doc, model.Source("mystery_directory"), "https://example.mx")
	assert.Empty(t, result.Leads)
	assert.False(t, result.HasNextPage)
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain ten digits", "5512345678", "5512345678"},
		{"spaced", "55 1234 5678", "5512345678"},
		{"parenthesized area code", "(55) 1234-5678", "5512345678"},
		{"country prefix", "+52 55 1234 5678", "5512345678"},
		{"country prefix no plus", "52 81 8765 4321", "8187654321"},
		{"tel href", "tel:+525512345678", "5512345678"},
		{"three digit area code", "442 123 4567", "4421234567"},
		{"too short", "123 4567", ""},
		{"no digits", "llámanos hoy", ""},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePhone(tc.in))
		})
	}
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "Av. Juárez 10", CollapseWhitespace("  Av.\n\tJuárez   10  "))
	assert.Equal(t, "", CollapseWhitespace(" \n\t "))
}

func TestFirstEmail(t *testing.T) {
	assert.Equal(t, "ventas@acme.com.mx", FirstEmail(`<a href="mailto:ventas@acme.com.mx">correo</a>`))
	assert.Equal(t, "", FirstEmail("sin correo aquí"))
}

func TestHasNextPage_Indicators(t *testing.T) {
	e := &PaginasAmarillas{}
	cases := []struct {
		name string
		html string
		want bool
	}{
		{"rel next", `<a rel="next" href="?p=2">2</a>`, true},
		{"pagination next class", `<div class="pagination"><a class="next" href="?p=2">2</a></div>`, true},
		{"paginador siguiente class", `<div class="paginador"><a class="siguiente" href="?p=2">2</a></div>`, true},
		{"siguiente text", `<a href="?p=2">Siguiente</a>`, true},
		{"chevron text", `<a href="?p=2">»</a>`, true},
		{"unrelated anchor", `<a href="/about">Acerca de</a>`, false},
		{"no links", `<p>fin de resultados</p>`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := &fetch.Document{HTML: "<html><body>" + tc.html + "</body></html>", StatusCode: 200}
			assert.Equal(t, tc.want, e.HasNextPage(doc))
		})
	}
}
