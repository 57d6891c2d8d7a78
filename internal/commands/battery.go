package commands

import (
	"battery-status-bot/internal/metrics"
	"battery-status-bot/internal/throttle"
	"battery-status-bot/internal/types"
	"battery-status-bot/lib/helpers"
	"battery-status-bot/lib/translation"
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Fetcher returns the current SoC for a device ref.
type Fetcher interface {
	FetchSoC(ctx context.Context, ref string) types.Reading
}

type statusBucket struct {
	min    float64
	icon   string
	label  string
	phrase string
}

// ordered from the highest floor down; the last bucket catches everything below
var statusBuckets = []statusBucket{
	{80, "🟢", "Full tank", "ready to fly!"},
	{50, "🟡", "Normal", "you can still ride without panic."},
	{20, "🟠", "Caution", "riding on honour and a prayer…"},
	{15, "🔴", "Critical", "better take the stairs. Seriously."},
	{0, "⚪️", "Empty", "the show is over."},
}

// FormatStatus renders the status block for one station.
// An unavailable reading always renders the same failure text.
func FormatStatus(reading types.Reading, deviceName string) string {
	if !reading.Valid {
		return fmt.Sprintf("❌ *%s*", helpers.EscapeMarkdownV2(translation.Translate("Could not get data from the inverter cloud")))
	}

	bucket := statusBuckets[len(statusBuckets)-1]
	for _, b := range statusBuckets {
		if reading.Value >= b.min {
			bucket = b
			break
		}
	}

	return fmt.Sprintf(
		"%s *%s* — %s\n\n🔋 *%s:* %s%%\n📍 *%s:* %s",
		bucket.icon,
		helpers.EscapeMarkdownV2(translation.Translate(bucket.label)),
		helpers.EscapeMarkdownV2(translation.Translate(bucket.phrase)),
		helpers.EscapeMarkdownV2(translation.Translate("Charge")),
		helpers.FormatPercent(reading.Value),
		helpers.EscapeMarkdownV2(translation.Translate("Station")),
		helpers.EscapeMarkdownV2(deviceName),
	)
}

// FormatRateLimited tells a rejected user how long to wait.
func FormatRateLimited(decision throttle.Decision) string {
	wait := translation.Translate("Try again in a minute.")
	if minutes := decision.WaitMinutes(); minutes > 0 {
		wait = translation.Translate("Try again in %d min.", minutes)
	}
	return fmt.Sprintf("⏳ *%s*\n%s",
		helpers.EscapeMarkdownV2(translation.Translate("Request limit reached")),
		helpers.EscapeMarkdownV2(wait))
}

// CommandBattery applies the per-user limit and, if accepted, fetches every device.
// The second return value reports whether the request was accepted.
func CommandBattery(ctx context.Context, limiter *throttle.Throttle, fetcher Fetcher,
	devices []types.MonitoredDevice, userID int64, now time.Time) (string, bool) {
	log.Debugf("processing battery request from user %d", userID)

	decision := limiter.TryAccept(userID, now)
	if !decision.Accepted {
		log.Debugf("user %d rate limited, wait %s", userID, decision.Wait)
		metrics.RequestsRejected.Inc()
		return FormatRateLimited(decision), false
	}

	blocks := make([]string, 0, len(devices))
	for _, device := range devices {
		blocks = append(blocks, FormatStatus(fetcher.FetchSoC(ctx, device.Ref), device.DisplayName()))
	}
	return strings.Join(blocks, "\n\n"), true
}
