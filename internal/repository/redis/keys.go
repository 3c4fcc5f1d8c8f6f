package redis

import "fmt"

const ns = "boletapass:v1"

func KeyEventSummary(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:summary", ns, eventID)
}

func KeyEventTiers(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:tiers", ns, eventID)
}

func KeyEventList(city, category string) string {
	return fmt.Sprintf("%s:events:%s:%s", ns, city, category)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelOrdersChanged() string {
	return ns + ":orders:changed"
}
