package service

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/pkg/errors"

	"github.com/unclebandit/pta-newsletter/internal/htmlx"
	"github.com/unclebandit/pta-newsletter/internal/model"
)

const newsletterTemplate = `<p>Hi {{.SchoolName}} {{.Greeting}},</p>
{{- range .Sections}}
<p><strong>{{.Title}}</strong></p>
{{- if .Body}}
{{.Body}}
{{- end}}
{{- if .ImageURL}}
<p>{{if .ImageLink}}<a href="{{.ImageLink}}" target="_blank" rel="noopener noreferrer">{{end}}<img src="{{.ImageURL}}" alt="{{.ImageAlt}}" style="max-width:100%;height:auto;">{{if .ImageLink}}</a>{{end}}</p>
{{- end}}
{{- if .LinkURL}}
<p><a href="{{.LinkURL}}" target="_blank" rel="noopener noreferrer">{{.LinkText}}</a></p>
{{- end}}
{{- end}}
`

const (
	ptaGreeting    = "PTA Members"
	schoolGreeting = "Families"
)

type renderSection struct {
	Title     string
	Body      template.HTML
	LinkURL   string
	LinkText  string
	ImageURL  string
	ImageAlt  string
	ImageLink string
}

type renderData struct {
	SchoolName string
	Greeting   string
	Sections   []renderSection
}

// Rendered holds both audience versions of one campaign.
type Rendered struct {
	PTAHTML    string `json:"pta_html"`
	SchoolHTML string `json:"school_html"`
}

// Compiler renders ordered sections into the two audience documents with one template.
type Compiler struct {
	tmpl *template.Template
}

func NewCompiler() *Compiler {
	return &Compiler{tmpl: template.Must(template.New("newsletter").Parse(newsletterTemplate))}
}

// Compile renders the PTA document from every section and the school document from the
// sections addressed to all. Sections must already be in sort order.
func (c *Compiler) Compile(schoolName string, sections []model.Section) (Rendered, error) {
	pta, err := c.Render(schoolName, model.AudiencePTAOnly, sections)
	if err != nil {
		return Rendered{}, err
	}
	school, err := c.Render(schoolName, model.AudienceAll, sections)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{PTAHTML: pta, SchoolHTML: school}, nil
}

// Render produces one audience document. AudiencePTAOnly receives every section;
// AudienceAll receives only sections addressed to all.
func (c *Compiler) Render(schoolName string, audience model.Audience, sections []model.Section) (string, error) {
	data := renderData{SchoolName: schoolName, Greeting: schoolGreeting}
	if audience == model.AudiencePTAOnly {
		data.Greeting = ptaGreeting
	}
	for _, s := range sections {
		if audience != model.AudiencePTAOnly && s.Audience == model.AudiencePTAOnly {
			continue
		}
		rs := renderSection{
			Title:     s.Title,
			Body:      template.HTML(htmlx.Sanitize(s.Body)),
			LinkURL:   s.LinkURL,
			LinkText:  strings.TrimSpace(s.LinkText),
			ImageURL:  s.ImageURL,
			ImageAlt:  s.ImageAlt,
			ImageLink: s.ImageLink,
		}
		if rs.LinkText == "" {
			rs.LinkText = s.LinkURL
		}
		data.Sections = append(data.Sections, rs)
	}

	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "rendering newsletter")
	}
	return strings.TrimSpace(buf.String()), nil
}
