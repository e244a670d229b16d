package monitor

type MetricTag string

const (
	HttpRequestDurationTag MetricTag = "requests_duration_seconds"
	// Webhook ingress:
	WebhookDeliveriesCounterTag MetricTag = "webhook_deliveries_counter"
	ReplayBlockedCounterTag     MetricTag = "replay_blocked_counter"
	SwapFanoutDurationTag       MetricTag = "swap_fanout_duration_seconds"
	RoomsNotifiedHistogramTag   MetricTag = "rooms_notified_per_swap"
	// Rooms:
	RoomActivationsCounterTag  MetricTag = "room_activations_counter"
	RoomDestructionsCounterTag MetricTag = "room_destructions_counter"
	// Outbound:
	PushNotificationsCounterTag MetricTag = "push_notifications_counter"
	FilterSyncsCounterTag       MetricTag = "filter_syncs_counter"
)

func (m MetricTag) ListAll() []MetricTag {
	return []MetricTag{
		HttpRequestDurationTag,
		WebhookDeliveriesCounterTag,
		ReplayBlockedCounterTag,
		SwapFanoutDurationTag,
		RoomsNotifiedHistogramTag,
		RoomActivationsCounterTag,
		RoomDestructionsCounterTag,
		PushNotificationsCounterTag,
		FilterSyncsCounterTag,
	}
}
