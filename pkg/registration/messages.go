package registration

import (
	"fmt"
	"strings"
)

const exampleOrderID = "87526ab1-e9a2-4d6e-920f-ab05c399ea9a"

func usageMessage(command string) string {
	return fmt.Sprintf("Please provide an order ID. Example: %s %s", command, exampleOrderID)
}

func restrictedMessage(command string) string {
	return fmt.Sprintf("🔒 The %s command is restricted to authorized channels only.", command)
}

func startingMessage(orderID string) string {
	return fmt.Sprintf("🔍 Starting monitoring for order %s...\nChecking current execution status and setting up monitoring.", orderID)
}

func duplicateMessage(orderID string, report string, hours []int) string {
	lines := []string{fmt.Sprintf("⚠️ *Order Already Monitored*: %s", orderID)}
	if report != "" {
		lines = append(lines, report)
	}
	lines = append(lines, "", fmt.Sprintf("_This order is already in the monitoring batch. You'll receive updates at %s._", schedule(hours)))
	return strings.Join(lines, "\n")
}

func fetchFailedMessage(orderID string) string {
	return fmt.Sprintf("❌ Could not retrieve execution data for order %s", orderID)
}

func completeMessage(report string) string {
	return report + "\n\n_Order is complete - no monitoring needed._"
}

func activatedMessage(report string, hours []int) string {
	return report + "\n\n✅ *Real-time monitoring activated*\n" +
		"_• Live updates on status changes & significant fills_\n" +
		fmt.Sprintf("_• Batch updates: %s_", schedule(hours))
}

// schedule renders digest hours, e.g. "11:00 & 23:00 UTC".
func schedule(hours []int) string {
	if len(hours) == 0 {
		return "the next scheduled digest"
	}

	parts := make([]string, 0, len(hours))
	for _, h := range hours {
		parts = append(parts, fmt.Sprintf("%02d:00", h))
	}
	return strings.Join(parts, " & ") + " UTC"
}
