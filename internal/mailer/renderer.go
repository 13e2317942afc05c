package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	texttemplate "text/template"

	"eventmail/internal/types"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

// RenderedEmail holds the pre-rendered email content ready for transmission.
type RenderedEmail struct {
	Subject  string
	BodyHTML string
	BodyText string
}

// templateData is the struct passed into the templates. The same fields are
// sent as dynamic_template_data when a provider-side template is configured.
type templateData struct {
	Subject       string
	ProductName   string
	RecipientName string
	ActivationURL string
	EventTitle    string
	EventDate     string
	EventLocation string
	Organizer     string
}

// dynamicData converts d into the snake_case map used by provider-side
// templates.
func (d templateData) dynamicData() map[string]interface{} {
	out := map[string]interface{}{
		"subject":        d.Subject,
		"product_name":   d.ProductName,
		"recipient_name": d.RecipientName,
	}
	optional := map[string]string{
		"activation_url": d.ActivationURL,
		"event_title":    d.EventTitle,
		"event_date":     d.EventDate,
		"event_location": d.EventLocation,
		"organizer":      d.Organizer,
	}
	for k, v := range optional {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// Renderer renders the embedded html/template and text/template pair for
// each email kind. It is safe for concurrent use after construction.
type Renderer struct {
	htmlTemplates map[types.EmailKind]*template.Template
	textTemplates map[types.EmailKind]*texttemplate.Template
}

// NewRenderer parses the embedded templates and returns a Renderer.
// Returns an error if any template is missing or fails to parse.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		htmlTemplates: make(map[types.EmailKind]*template.Template),
		textTemplates: make(map[types.EmailKind]*texttemplate.Template),
	}

	baseHTML, err := templateFS.ReadFile("templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to read base.html: %w", err)
	}

	for _, kind := range types.AllEmailKinds {
		name := string(kind)

		htmlContent, err := templateFS.ReadFile(fmt.Sprintf("templates/%s.html", name))
		if err != nil {
			return nil, fmt.Errorf("renderer: failed to read %s.html: %w", name, err)
		}
		htmlTmpl, err := template.New("base").Parse(string(baseHTML))
		if err != nil {
			return nil, fmt.Errorf("renderer: failed to parse base.html: %w", err)
		}
		if _, err := htmlTmpl.Parse(string(htmlContent)); err != nil {
			return nil, fmt.Errorf("renderer: failed to parse %s.html: %w", name, err)
		}
		r.htmlTemplates[kind] = htmlTmpl

		txtContent, err := templateFS.ReadFile(fmt.Sprintf("templates/%s.txt", name))
		if err != nil {
			return nil, fmt.Errorf("renderer: failed to read %s.txt: %w", name, err)
		}
		txtTmpl, err := texttemplate.New(name).Parse(string(txtContent))
		if err != nil {
			return nil, fmt.Errorf("renderer: failed to parse %s.txt: %w", name, err)
		}
		r.textTemplates[kind] = txtTmpl
	}

	return r, nil
}

// Render executes the templates for kind with data.
func (r *Renderer) Render(kind types.EmailKind, data templateData) (*RenderedEmail, error) {
	htmlTmpl, ok := r.htmlTemplates[kind]
	if !ok {
		return nil, fmt.Errorf("renderer: no HTML template for kind %q", kind)
	}
	txtTmpl, ok := r.textTemplates[kind]
	if !ok {
		return nil, fmt.Errorf("renderer: no text template for kind %q", kind)
	}

	var htmlBuf bytes.Buffer
	if err := htmlTmpl.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("renderer: failed to render HTML for %q: %w", kind, err)
	}

	var txtBuf bytes.Buffer
	if err := txtTmpl.Execute(&txtBuf, data); err != nil {
		return nil, fmt.Errorf("renderer: failed to render text for %q: %w", kind, err)
	}

	return &RenderedEmail{
		Subject:  data.Subject,
		BodyHTML: htmlBuf.String(),
		BodyText: txtBuf.String(),
	}, nil
}
