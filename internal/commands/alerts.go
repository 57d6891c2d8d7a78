package commands

import (
	"battery-status-bot/internal/alert"
	"battery-status-bot/internal/types"
	"battery-status-bot/lib/helpers"
	"battery-status-bot/lib/translation"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// RecentAlertsLimit is how many logged alerts /alerts lists.
const RecentAlertsLimit = 5

// CommandAlerts lists the thresholds of every device with their armed or fired state,
// followed by the most recent alerts.
func CommandAlerts(states []alert.DeviceState, recent []types.AlertRecord, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 *%s*\n", helpers.EscapeMarkdownV2(translation.Translate("Alert thresholds")))

	for _, state := range states {
		b.WriteString("\n📍 *" + helpers.EscapeMarkdownV2(state.Device.DisplayName()) + "*")
		if state.LastReading.Valid {
			fmt.Fprintf(&b, " · %s%% \\(%s\\)",
				helpers.FormatPercent(state.LastReading.Value),
				helpers.EscapeMarkdownV2(humanize.RelTime(state.LastSeen, now, translation.Translate("ago"), "")))
		}
		b.WriteString("\n")

		for _, threshold := range state.Device.Thresholds {
			icon, status := "🟢", translation.Translate("armed")
			if state.Fired[threshold] {
				icon, status = "🔴", translation.Translate("fired")
			}
			fmt.Fprintf(&b, "%s %s%% %s\n", icon, helpers.FormatPercent(threshold), helpers.EscapeMarkdownV2(status))
		}
	}

	if len(recent) > 0 {
		fmt.Fprintf(&b, "\n*%s*\n", helpers.EscapeMarkdownV2(translation.Translate("Recent alerts")))
		for _, record := range recent {
			name := record.DeviceName
			if name == "" {
				name = record.DeviceRef
			}
			fmt.Fprintf(&b, "▫️ %s: %s%% ≤ %s%% \\(%s\\)\n",
				helpers.EscapeMarkdownV2(name),
				helpers.FormatPercent(record.SoC),
				helpers.FormatPercent(record.Threshold),
				helpers.EscapeMarkdownV2(humanize.RelTime(record.CreatedAt, now, translation.Translate("ago"), "")))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
