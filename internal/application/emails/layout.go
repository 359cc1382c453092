package emails

import (
	"fmt"
	"strings"
	"time"
)

const (
	siteURL        = "https://easyflip.ai"
	themePrimary   = "#2563EB"
	themeTextMain  = "#1F2937"
	themeTextMuted = "#6B7280"
	themeBgBody    = "#F3F4F6"
	themeWhite     = "#FFFFFF"
)

// EmailLayout wraps content in the EasyFlip HTML shell.
func EmailLayout(contentHTML string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>EasyFlip</title>
  <style>
    body { margin: 0; padding: 0; width: 100%% !important; background-color: %s; -webkit-font-smoothing: antialiased; }
    body, td, p, a { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Helvetica, Arial, sans-serif; color: %s; }
    .content-body p { margin: 0 0 24px 0; font-size: 16px; line-height: 1.6; }
    .content-body h1 { font-size: 24px; margin: 0 0 20px 0; font-weight: 700; }
    .ef-button { display: inline-block; background-color: %s; color: #ffffff !important; padding: 12px 32px; text-decoration: none !important; border-radius: 6px; font-weight: 600; }
    .footer-text { color: %s; font-size: 13px; line-height: 1.5; }
  </style>
</head>
<body style="margin: 0; padding: 0; background-color: %s;">
  <table role="presentation" width="100%%" border="0" cellspacing="0" cellpadding="0">
    <tr>
      <td align="center" style="padding: 40px 0;">
        <table role="presentation" width="600" border="0" cellspacing="0" cellpadding="0" style="width: 600px; background-color: %s; border-radius: 8px;">
          <tr>
            <td class="content-body" style="padding: 48px;">%s</td>
          </tr>
          <tr>
            <td align="center" style="padding: 0 48px 40px 48px;">
              <p class="footer-text">&copy; %d EasyFlip. <a href="%s/privacy" style="color: %s;">Privacy</a></p>
            </td>
          </tr>
        </table>
        <p style="margin-top: 24px; color: #9CA3AF; font-size: 12px;">Don't want these emails? <a href="{{unsubscribe_url}}" style="color: #9CA3AF;">Unsubscribe</a></p>
      </td>
    </tr>
  </table>
</body>
</html>`,
		themeBgBody, themeTextMain, themePrimary, themeTextMuted,
		themeBgBody, themeWhite, contentHTML, time.Now().Year(), siteURL, themeTextMuted)
}

// EscapeHTML escapes HTML specials for safe interpolation.
func EscapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}
