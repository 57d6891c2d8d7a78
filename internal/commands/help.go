package commands

import (
	"battery-status-bot/lib/helpers"
	"battery-status-bot/lib/translation"
	"fmt"
)

// CommandStart greets the user and points at the status button.
func CommandStart(buttonText string, limit int) string {
	return fmt.Sprintf("👋 %s\n\n%s",
		helpers.EscapeMarkdownV2(translation.Translate("Hi! I show the charge of the building's backup battery.")),
		helpers.EscapeMarkdownV2(translation.Translate("Press \"%s\" to check it. You can ask up to %d times per hour.", buttonText, limit)))
}

// CommandHelp lists the supported commands.
func CommandHelp(limit int) string {
	lines := []string{
		"/battery \\- " + helpers.EscapeMarkdownV2(translation.Translate("current battery charge (up to %d times per hour)", limit)),
		"/chart \\- " + helpers.EscapeMarkdownV2(translation.Translate("charge over the last 24 hours")),
		"/alerts \\- " + helpers.EscapeMarkdownV2(translation.Translate("alert thresholds and recent alerts")),
		"/help \\- " + helpers.EscapeMarkdownV2(translation.Translate("this message")),
	}
	text := "*" + helpers.EscapeMarkdownV2(translation.Translate("Commands")) + "*\n"
	for _, line := range lines {
		text += "\n" + line
	}
	return text
}
