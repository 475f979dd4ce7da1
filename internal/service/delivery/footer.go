package delivery

import (
	"fmt"
	"html"
	"strings"
)

const footerTemplate = `<div style="margin-top: 30px; padding-top: 20px; border-top: 1px solid #e5e5e5; color: #666; font-size: 12px; font-family: Arial, sans-serif;">` +
	`<p style="margin: 0 0 10px 0;"><a href="%[1]s" style="background-color: #d9534f; border: 1px solid #d9534f; border-radius: 4px; color: #ffffff; display: inline-block; font-size: 13px; font-weight: bold; line-height: 40px; text-align: center; text-decoration: none; width: 150px;">Unsubscribe</a></p>` +
	`<p style="margin: 10px 0 0 0; font-size: 11px; color: #999;">If you no longer wish to receive these emails, use the unsubscribe link above.</p>` +
	`</div>`

// UnsubscribeFooter renders the footer block for a link.
func UnsubscribeFooter(url string) string {
	return fmt.Sprintf(footerTemplate, html.EscapeString(url))
}

// AddUnsubscribeFooter inserts the footer before </body>, or appends it
// when the document has no body element.
func AddUnsubscribeFooter(body, url string) string {
	footer := UnsubscribeFooter(url)
	if i := strings.LastIndex(strings.ToLower(body), "</body>"); i >= 0 {
		return body[:i] + footer + body[i:]
	}
	return body + footer
}
