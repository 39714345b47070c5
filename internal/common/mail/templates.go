package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"ipa-leadgate/pkg/roi"
)

const ROISubject = "Ihr ROI-Rechner für KI-gestützte Prozessautomatisierung"

// Highlight is one result line in the ROI email.
type Highlight struct {
	Label string
	Value string
	Hint  string
}

// ROIEmail is the view model of the email sent after step two.
type ROIEmail struct {
	FirstName  string
	SiteURL    string
	Intro      string
	Highlights []Highlight
}

// BuildROIEmail picks the result lines for the variant. An empty snapshot
// produces an email without the results box.
func BuildROIEmail(v *roi.Variant, firstName, siteURL string, s roi.Snapshot) ROIEmail {
	email := ROIEmail{
		FirstName: firstName,
		SiteURL:   siteURL,
		Intro:     "Basierend auf Ihren Angaben haben wir folgendes Einsparpotenzial ermittelt:",
	}
	if len(s) == 0 {
		return email
	}

	format := func(name string) string {
		o, ok := v.Output(name)
		if !ok {
			return roi.NotComputable
		}
		return o.Format(s)
	}

	switch v.Name {
	case roi.Time.Name:
		email.Intro = "Basierend auf Ihren Angaben haben wir folgendes Zeitgewinn-Potenzial ermittelt:"
		ownerShare, _ := s.Get("ownerShare")
		ownerPercent := roi.FormatPercentage(ownerShare)
		teamPercent := roi.FormatPercentage(1 - ownerShare)
		email.Highlights = []Highlight{
			{Label: "Kapazität pro Jahr", Value: format("totalHoursAnnual")},
			{Label: "Zeitgewinn pro Monat / Woche", Value: format("totalHoursMonthly") + "/Monat · " + format("totalHoursWeekly") + "/Woche"},
			{Label: "Inhaber (" + ownerPercent + ")", Value: format("ownerHoursMonthly") + "/Monat"},
			{Label: "Team (" + teamPercent + ")", Value: format("teamHoursMonthly") + "/Monat"},
			{Label: "Abende zurück pro Monat", Value: format("eveningsSavedMonthly"),
				Hint: fmt.Sprintf("Annahme: %d Stunden pro Abend", roi.HoursPerEvening)},
		}
	default:
		email.Highlights = []Highlight{
			{Label: "Ersparnis pro Jahr", Value: format("savingsAnnual")},
			{Label: "Ersparnis pro Monat", Value: format("savingsMonthly")},
			{Label: "Break-even", Value: format("breakEvenMonths")},
			{Label: "Gewonnene Kapazität pro Jahr", Value: format("capacityHoursAnnual")},
		}
	}
	return email
}

var roiTemplate = template.Must(template.New("roi").Parse(`<!DOCTYPE html>
<html lang="de">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Ihr ROI-Rechner für KI-gestützte Prozessautomatisierung</title>
</head>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f4f4f4;">
  <table role="presentation" style="width: 100%; border-collapse: collapse;">
    <tr>
      <td align="center" style="padding: 40px 0;">
        <table role="presentation" style="width: 600px; max-width: 100%; border-collapse: collapse; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="background-color: #0f172a; padding: 40px 30px; text-align: center;">
              <h1 style="margin: 0; color: #ffffff; font-size: 28px;">Ihr ROI-Rechner</h1>
              <p style="margin: 10px 0 0 0; color: #94a3b8; font-size: 16px;">KI-gestützte Prozessautomatisierung für Steuerkanzleien</p>
            </td>
          </tr>
          <tr>
            <td style="padding: 40px 30px; color: #334155; font-size: 16px; line-height: 1.6;">
              <p style="margin: 0 0 20px 0;">Hallo {{.FirstName}},</p>
              <p style="margin: 0 0 20px 0;">vielen Dank für Ihr Interesse an unserem ROI-Rechner. {{.Intro}}</p>
              {{- if .Highlights}}
              <table role="presentation" style="width: 100%; border-collapse: collapse; background-color: #f1f5f9; border-radius: 8px; margin: 30px 0;">
                {{- range .Highlights}}
                <tr>
                  <td style="padding: 15px 30px; border-bottom: 1px solid #cbd5e1;">
                    <p style="margin: 0; color: #64748b; font-size: 14px;">{{.Label}}</p>
                    <p style="margin: 5px 0 0 0; color: #0f172a; font-size: 22px; font-weight: bold;">{{.Value}}</p>
                    {{- if .Hint}}
                    <p style="margin: 5px 0 0 0; color: #64748b; font-size: 12px;">{{.Hint}}</p>
                    {{- end}}
                  </td>
                </tr>
                {{- end}}
              </table>
              {{- end}}
              <p style="margin: 0 0 20px 0;">Im Anhang finden Sie den vollständigen ROI-Rechner als PDF mit detaillierten Informationen zu unserem Ankerpaket: <strong>Steuerlast-Prognose plus Mandantenbericht</strong>.</p>
              <ul style="margin: 0 0 30px 0; padding-left: 20px; line-height: 1.8;">
                <li>Die vollständige Berechnungsformel</li>
                <li>Benchmarks aus Implementierungsprojekten</li>
                <li>Konkrete Rechenbeispiele</li>
                <li>Weitere Use Cases, die zusätzlich ROI erzeugen</li>
                <li>Unsere 3 Säulen der Sicherheit</li>
              </ul>
              <p style="text-align: center; margin: 30px 0;">
                <a href="{{.SiteURL}}" style="display: inline-block; padding: 16px 32px; background-color: #14b8a6; color: #ffffff; text-decoration: none; border-radius: 8px; font-weight: 600;">Mehr erfahren</a>
              </p>
              <p style="margin: 30px 0 0 0;">Bei Fragen stehen wir Ihnen gerne zur Verfügung.</p>
              <p style="margin: 20px 0 0 0;">Mit freundlichen Grüßen<br><strong>Ihr IPA Team</strong></p>
            </td>
          </tr>
          <tr>
            <td style="background-color: #f8fafc; padding: 30px; text-align: center; border-top: 1px solid #e2e8f0; color: #64748b; font-size: 12px;">
              <p style="margin: 0 0 10px 0;">100% DSGVO-konform | Juristisch geprüft | Keine Spam-Garantie</p>
              <p style="margin: 0; font-size: 11px;">Sie erhalten diese E-Mail, weil Sie unseren ROI-Rechner angefordert haben.</p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`))

// RenderROIEmail renders the email HTML. Values are HTML-escaped.
func RenderROIEmail(data ROIEmail) (string, error) {
	var buf bytes.Buffer
	if err := roiTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render ROI email: %w", err)
	}
	return buf.String(), nil
}

// ContactNotification is the internal alert for a process-analysis request.
type ContactNotification struct {
	Name          string
	Email         string
	Phone         string
	FirmName      string
	EmployeeCount string
	Message       string
	IP            string
	SubmittedAt   time.Time
}

func ContactSubject(firmName string) string {
	return "Neue Prozessanalyse-Anfrage von " + firmName
}

var contactTemplate = template.Must(template.New("contact").Funcs(template.FuncMap{
	"german": func(t time.Time) string { return t.Format("02.01.2006, 15:04:05") },
}).Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
  </head>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <div style="background: #0d9488; color: white; padding: 30px; border-radius: 8px 8px 0 0;">
      <h1 style="margin: 0; font-size: 24px;">Neue Prozessanalyse-Anfrage</h1>
      <p style="margin: 10px 0 0 0; opacity: 0.9;">IPA Website Lead</p>
    </div>
    <div style="background: #f9fafb; padding: 30px; border: 1px solid #e5e7eb; border-top: none;">
      <p><strong>Name:</strong><br>{{.Name}}</p>
      <p><strong>E-Mail:</strong><br><a href="mailto:{{.Email}}" style="color: #0d9488; text-decoration: none;">{{.Email}}</a></p>
      <p><strong>Telefon:</strong><br><a href="tel:{{.Phone}}" style="color: #0d9488; text-decoration: none;">{{.Phone}}</a></p>
      <p><strong>Kanzleiname:</strong><br>{{.FirmName}}</p>
      <p><strong>Mitarbeiteranzahl:</strong><br>{{.EmployeeCount}}</p>
      {{- if .Message}}
      <p><strong>Nachricht:</strong><br>{{.Message}}</p>
      {{- end}}
      <div style="margin-top: 30px; padding-top: 20px; border-top: 1px solid #e5e7eb; font-size: 12px; color: #6b7280;">
        <p>Eingereicht am: {{german .SubmittedAt}}</p>
        <p>Von IP: {{.IP}}</p>
      </div>
    </div>
  </body>
</html>`))

func RenderContactNotification(n ContactNotification) (string, error) {
	var buf bytes.Buffer
	if err := contactTemplate.Execute(&buf, n); err != nil {
		return "", fmt.Errorf("failed to render contact notification: %w", err)
	}
	return buf.String(), nil
}
